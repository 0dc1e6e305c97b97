package services

import (
	"github.com/VipuDevAI/exam-engine/internal/models"
)

// ===== REQUESTS =====

type StartExamRequest struct {
	TestID    uint   `json:"test_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	SchoolID  string `json:"school_id" validate:"required"`
}

// SaveStateRequest is one client checkpoint. Fields overwrite the attempt
// verbatim after the tracker normalizes statuses and the clock clamp runs.
type SaveStateRequest struct {
	AttemptID            string                            `json:"attempt_id" validate:"required"`
	Answers              map[uint]string                   `json:"answers"`
	QuestionStatuses     map[uint]models.QuestionNavStatus `json:"question_statuses" validate:"omitempty,dive,nav_status"`
	MarkedForReview      []uint                            `json:"marked_for_review"`
	TimeRemainingSeconds int                               `json:"time_remaining_seconds" validate:"min=0"`

	// VisibilityEvents is the client's cumulative tab-switch count.
	VisibilityEvents int `json:"visibility_events" validate:"min=0"`
}

type SubmitExamRequest struct {
	AttemptID            string          `json:"attempt_id" validate:"required"`
	Answers              map[uint]string `json:"answers"`
	TimeRemainingSeconds int             `json:"time_remaining_seconds" validate:"min=0"`
}

type RecordManualScoreRequest struct {
	AttemptID  string  `json:"attempt_id" validate:"required"`
	QuestionID uint    `json:"question_id" validate:"required"`
	Marks      float64 `json:"marks" validate:"min=0"`
}

type CompleteMarkingRequest struct {
	AttemptID string  `json:"attempt_id" validate:"required"`
	Remarks   *string `json:"remarks" validate:"omitempty,max=2000"`
}

// ===== RESPONSES =====

// SubmitResult is what the student sees immediately after submission. Score
// and Percentage stay nil while subjective questions await manual marking.
type SubmitResult struct {
	AttemptID          string               `json:"attempt_id"`
	Status             models.AttemptStatus `json:"status"`
	Score              *float64             `json:"score"`
	TotalMarks         int                  `json:"total_marks"`
	Percentage         *float64             `json:"percentage"`
	NeedsManualMarking bool                 `json:"needs_manual_marking"`
}
