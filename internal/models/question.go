package models

import (
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice QuestionType = "single_choice"
	TrueFalse    QuestionType = "true_false"
	FillBlank    QuestionType = "fill_blank"
	Matching     QuestionType = "matching"
	Numeric      QuestionType = "numeric"
	ShortAnswer  QuestionType = "short_answer"
	LongAnswer   QuestionType = "long_answer"
)

// RequiresManualMarking reports whether answers of this type need a human-awarded
// mark. Everything else has a single comparable correct answer and is auto-scored.
func (t QuestionType) RequiresManualMarking() bool {
	return t == ShortAnswer || t == LongAnswer
}

// Question is read-only from the engine's point of view; the question-bank
// service owns its content lifecycle.
type Question struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	Type          QuestionType `json:"type" gorm:"not null;size:30;index" validate:"required,question_type"`
	Text          string       `json:"text" gorm:"type:text;not null"`
	CorrectAnswer *string      `json:"correct_answer" gorm:"type:text"`
	Marks         float64      `json:"marks" gorm:"not null;default:1" validate:"min=1"`

	Subject string  `json:"subject" gorm:"not null;size:100;index:idx_questions_pool"`
	Chapter *string `json:"chapter" gorm:"size:100"`
	Topic   *string `json:"topic" gorm:"size:100"`
	Grade   string  `json:"grade" gorm:"not null;size:20;index:idx_questions_pool"`

	// Only verified, assessment-eligible questions are selectable for a graded attempt.
	Verified            bool `json:"verified" gorm:"default:false;index:idx_questions_pool"`
	UsableForAssessment bool `json:"usable_for_assessment" gorm:"default:true;index:idx_questions_pool"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}
