package services

import (
	"errors"
	"fmt"

	apperrors "github.com/VipuDevAI/exam-engine/internal/errors"
	"github.com/VipuDevAI/exam-engine/internal/models"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Precondition failures; deterministic, never retried.
	ErrExamDisabled    = errors.New("exams are disabled for this school or test")
	ErrTestNotFound    = errors.New("test not found")
	ErrAttemptNotFound = errors.New("attempt not found")

	// ErrMarkingIncomplete rejects CompleteMarking while any subjective
	// question still lacks a manual score.
	ErrMarkingIncomplete = errors.New("manual marking is incomplete")

	// ErrConcurrentModification surfaces a lost checkpoint/submit race after
	// the internal retry is exhausted.
	ErrConcurrentModification = errors.New("attempt was modified concurrently")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// InsufficientPoolError reports a question pool too small for the test's
// required count. Carries the data the caller needs to explain the failure.
type InsufficientPoolError struct {
	Subject   string `json:"subject"`
	Grade     string `json:"grade"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

func (e *InsufficientPoolError) Error() string {
	return fmt.Sprintf("insufficient question pool for %s (grade %s): need %d, have %d",
		e.Subject, e.Grade, e.Required, e.Available)
}

// StateTransitionError reports an operation invoked on an attempt whose
// status does not permit it (submit called twice, marking a non-submitted
// attempt, checkpointing a finalized one).
type StateTransitionError struct {
	AttemptID string               `json:"attempt_id"`
	Operation string               `json:"operation"`
	Status    models.AttemptStatus `json:"status"`
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s attempt %s in status %s",
		e.Operation, e.AttemptID, e.Status)
}

// ManualScoreError reports an out-of-range or misdirected manual mark.
type ManualScoreError struct {
	AttemptID  string  `json:"attempt_id"`
	QuestionID uint    `json:"question_id"`
	Marks      float64 `json:"marks"`
	Reason     string  `json:"reason"`
}

func (e *ManualScoreError) Error() string {
	return fmt.Sprintf("invalid manual score %.2f for question %d on attempt %s: %s",
		e.Marks, e.QuestionID, e.AttemptID, e.Reason)
}

func newStateError(attemptID, operation string, status models.AttemptStatus) *StateTransitionError {
	return &StateTransitionError{AttemptID: attemptID, Operation: operation, Status: status}
}

// ===== ERROR CLASSIFIERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrAttemptNotFound)
}

// IsPrecondition checks if error is a deterministic precondition failure
func IsPrecondition(err error) bool {
	var poolErr *InsufficientPoolError
	var stateErr *StateTransitionError
	var scoreErr *ManualScoreError
	return errors.Is(err, ErrExamDisabled) ||
		errors.Is(err, ErrMarkingIncomplete) ||
		errors.As(err, &poolErr) ||
		errors.As(err, &stateErr) ||
		errors.As(err, &scoreErr)
}

// IsConflict checks if error represents a lost write race
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}
