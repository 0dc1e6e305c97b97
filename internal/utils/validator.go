package utils

import (
	"reflect"
	"strings"

	apperrors "github.com/VipuDevAI/exam-engine/internal/errors"
	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps the struct validator with the engine's custom rules and
// JSON-tag field naming.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate validates struct tags and converts failures into the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("attempt_status", validateAttemptStatus)
	validate.RegisterValidation("nav_status", validateNavStatus)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	validTypes := []models.QuestionType{
		models.SingleChoice,
		models.TrueFalse,
		models.FillBlank,
		models.Matching,
		models.Numeric,
		models.ShortAnswer,
		models.LongAnswer,
	}

	value := fl.Field().String()
	for _, validType := range validTypes {
		if string(validType) == value {
			return true
		}
	}
	return false
}

func validateAttemptStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.AttemptStatus{
		models.AttemptInProgress,
		models.AttemptSubmitted,
		models.AttemptMarked,
		models.AttemptAbsent,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

func validateNavStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.QuestionNavStatus{
		models.NavNotVisited,
		models.NavUnanswered,
		models.NavAnswered,
		models.NavMarkedReview,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}
