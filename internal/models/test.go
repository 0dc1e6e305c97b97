package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Test is the configuration of one exam paper. It is owned by the paper
// authoring workflow and read-only to the attempt engine.
type Test struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Title    string `json:"title" gorm:"not null;size:200"`
	Subject  string `json:"subject" gorm:"not null;size:100;index"`
	Grade    string `json:"grade" gorm:"not null;size:20;index"`
	SchoolID string `json:"school_id" gorm:"not null;size:64;index"`

	// DurationMinutes is optional; when absent the duration is derived from
	// TotalMarks, see EffectiveDurationMinutes.
	DurationMinutes *int `json:"duration_minutes" validate:"omitempty,min=1"`
	TotalMarks      int  `json:"total_marks" gorm:"not null" validate:"required,min=1"`
	QuestionCount   int  `json:"question_count" gorm:"not null" validate:"required,min=1"`

	// QuestionIDs, when non-empty, fixes the question set for every attempt;
	// only the presentation order is scrambled per attempt.
	QuestionIDs datatypes.JSONSlice[uint] `json:"question_ids" gorm:"type:jsonb"`

	IsActive bool `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Test) TableName() string {
	return "tests"
}

// EffectiveDurationMinutes returns the explicit duration when set, otherwise
// the marks-banded default: up to 40 marks get 90 minutes, up to 80 marks get
// 180 minutes, larger papers get 2.25 minutes per mark rounded up.
func (t *Test) EffectiveDurationMinutes() int {
	if t.DurationMinutes != nil && *t.DurationMinutes > 0 {
		return *t.DurationMinutes
	}
	switch {
	case t.TotalMarks <= 40:
		return 90
	case t.TotalMarks <= 80:
		return 180
	default:
		return int(math.Ceil(float64(t.TotalMarks) * 2.25))
	}
}

// AssignedCount is the number of questions one attempt receives.
func (t *Test) AssignedCount() int {
	if len(t.QuestionIDs) > 0 {
		return len(t.QuestionIDs)
	}
	return t.QuestionCount
}
