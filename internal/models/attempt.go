package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptMarked     AttemptStatus = "marked"
	AttemptAbsent     AttemptStatus = "absent"
)

// IsFinal reports whether the status is terminal for student interaction.
func (s AttemptStatus) IsFinal() bool {
	return s != AttemptInProgress
}

type QuestionNavStatus string

const (
	NavNotVisited   QuestionNavStatus = "not_visited"
	NavUnanswered   QuestionNavStatus = "unanswered"
	NavAnswered     QuestionNavStatus = "answered"
	NavMarkedReview QuestionNavStatus = "marked_review"
)

// Attempt is one student's instance of taking one test: its own assigned
// question order, timer, answers and score. AssignedQuestionIDs is set at
// creation and never mutated; TotalMarks is copied from the test at creation
// and stays fixed even if the test changes afterwards.
type Attempt struct {
	ID        string `json:"id" gorm:"primaryKey;size:36"`
	TestID    uint   `json:"test_id" gorm:"not null;index:idx_attempts_test_student"`
	StudentID string `json:"student_id" gorm:"not null;size:64;index:idx_attempts_test_student"`
	SchoolID  string `json:"school_id" gorm:"not null;size:64;index"`

	AssignedQuestionIDs datatypes.JSONSlice[uint] `json:"assigned_question_ids" gorm:"type:jsonb;not null"`

	// Answers holds submitted answer text keyed by question id; a missing key
	// means unanswered. QuestionStatuses always carries one entry per assigned
	// question id.
	Answers          map[uint]string            `json:"answers" gorm:"serializer:json;type:jsonb"`
	QuestionStatuses map[uint]QuestionNavStatus `json:"question_statuses" gorm:"serializer:json;type:jsonb"`
	MarkedForReview  datatypes.JSONSlice[uint]  `json:"marked_for_review" gorm:"type:jsonb"`

	DurationSeconds      int       `json:"duration_seconds" gorm:"not null"`
	TimeRemainingSeconds int       `json:"time_remaining_seconds" gorm:"not null"`
	ExpiresAt            time.Time `json:"expires_at" gorm:"not null;index"`

	Status      AttemptStatus `json:"status" gorm:"not null;size:20;index:idx_attempts_test_student"`
	StartedAt   time.Time     `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time    `json:"submitted_at"`

	TotalMarks       int                       `json:"total_marks" gorm:"not null"`
	AutoScore        float64                   `json:"auto_score"`
	Score            *float64                  `json:"score"`
	Percentage       *float64                  `json:"percentage"`
	PendingManualIDs datatypes.JSONSlice[uint] `json:"pending_manual_ids" gorm:"type:jsonb"`
	ManualScores     map[uint]float64          `json:"manual_scores" gorm:"serializer:json;type:jsonb"`
	TeacherRemarks   *string                   `json:"teacher_remarks" gorm:"type:text"`

	// Count of client-reported visibility changes (tab switches); recorded
	// only, never acted on.
	VisibilityEvents int `json:"visibility_events"`

	// Version backs optimistic concurrency on checkpoint/submit writes.
	Version int `json:"-" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsAssigned reports whether the question id belongs to this attempt.
func (a *Attempt) IsAssigned(questionID uint) bool {
	for _, id := range a.AssignedQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// NeedsManualMarking reports whether any assigned question still awaits a
// human-awarded mark.
func (a *Attempt) NeedsManualMarking() bool {
	return len(a.PendingManualIDs) > 0
}
