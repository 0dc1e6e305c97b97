package models

import "time"

// GradeSummary is the flattened result record derived from a marked attempt.
// Reporting and the parent/student results views consume it; the engine only
// produces it.
type GradeSummary struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AttemptID  string    `json:"attempt_id" gorm:"not null;size:36;uniqueIndex"`
	TestID     uint      `json:"test_id" gorm:"not null;index"`
	StudentID  string    `json:"student_id" gorm:"not null;size:64;index"`
	SchoolID   string    `json:"school_id" gorm:"not null;size:64;index"`
	Subject    string    `json:"subject" gorm:"not null;size:100"`
	Grade      string    `json:"grade" gorm:"not null;size:20"`
	Score      float64   `json:"score" gorm:"not null"`
	TotalMarks int       `json:"total_marks" gorm:"not null"`
	Percentage float64   `json:"percentage" gorm:"not null"`
	MarkedAt   time.Time `json:"marked_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (GradeSummary) TableName() string {
	return "grade_summaries"
}
