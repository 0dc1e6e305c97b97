package events

import (
	"time"
)

// EventType labels the attempt lifecycle events published for notification
// and reporting consumers.
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptMarked    EventType = "attempt.marked"
	EventGradeRecorded    EventType = "grade.recorded"
)

// AttemptEvent is the envelope for all published lifecycle events.
type AttemptEvent struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data"`
}

type AttemptStartedData struct {
	AttemptID     string    `json:"attempt_id"`
	TestID        uint      `json:"test_id"`
	StudentID     string    `json:"student_id"`
	SchoolID      string    `json:"school_id"`
	QuestionCount int       `json:"question_count"`
	DurationSecs  int       `json:"duration_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

type AttemptSubmittedData struct {
	AttemptID          string    `json:"attempt_id"`
	TestID             uint      `json:"test_id"`
	StudentID          string    `json:"student_id"`
	SchoolID           string    `json:"school_id"`
	SubmittedAt        time.Time `json:"submitted_at"`
	AutoSubmitted      bool      `json:"auto_submitted"`
	NeedsManualMarking bool      `json:"needs_manual_marking"`
	Score              *float64  `json:"score,omitempty"`
}

type AttemptMarkedData struct {
	AttemptID  string    `json:"attempt_id"`
	TestID     uint      `json:"test_id"`
	StudentID  string    `json:"student_id"`
	SchoolID   string    `json:"school_id"`
	Score      float64   `json:"score"`
	TotalMarks int       `json:"total_marks"`
	Percentage float64   `json:"percentage"`
	MarkedAt   time.Time `json:"marked_at"`
}

type GradeRecordedData struct {
	AttemptID  string  `json:"attempt_id"`
	TestID     uint    `json:"test_id"`
	StudentID  string  `json:"student_id"`
	SchoolID   string  `json:"school_id"`
	Subject    string  `json:"subject"`
	Grade      string  `json:"grade"`
	Score      float64 `json:"score"`
	TotalMarks int     `json:"total_marks"`
	Percentage float64 `json:"percentage"`
}
