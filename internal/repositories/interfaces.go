package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/VipuDevAI/exam-engine/internal/models"
)

// Storage-level sentinel errors. Concrete stores translate their native
// failures into these so the service layer stays driver-agnostic.
var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateActiveAttempt is returned by AttemptRepository.Create when
	// an in_progress attempt already exists for the same (test, student) pair.
	ErrDuplicateActiveAttempt = errors.New("active attempt already exists for test and student")

	// ErrVersionConflict is returned by AttemptRepository.Update when the
	// attempt was modified since it was read (optimistic lock lost).
	ErrVersionConflict = errors.New("attempt was modified concurrently")
)

// IsNotFoundError checks if error represents a "not found" condition
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateActiveError checks for the unique-active-attempt violation
func IsDuplicateActiveError(err error) bool {
	return errors.Is(err, ErrDuplicateActiveAttempt)
}

// IsVersionConflictError checks for an optimistic-lock failure
func IsVersionConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

type AttemptFilters struct {
	Status    models.AttemptStatus `json:"status"`
	TestID    *uint                `json:"test_id"`
	StudentID *string              `json:"student_id"`
	SchoolID  *string              `json:"school_id"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`    // "started_at", "submitted_at"
	SortOrder string               `json:"sort_order"` // "asc", "desc"
}

// TestRepository reads exam paper configuration. The paper authoring workflow
// owns writes; the engine never mutates tests.
type TestRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Test, error)
}

// QuestionRepository is the question pool accessor.
type QuestionRepository interface {
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)

	// GetEligible returns all verified, assessment-eligible questions for a
	// (subject, grade) pair.
	GetEligible(ctx context.Context, subject, grade string) ([]*models.Question, error)
}

// AttemptRepository is the durable attempt store.
type AttemptRepository interface {
	// Create persists a new attempt. Implementations must enforce the
	// at-most-one-active-attempt invariant atomically and report violations
	// as ErrDuplicateActiveAttempt.
	Create(ctx context.Context, attempt *models.Attempt) error

	GetByID(ctx context.Context, id string) (*models.Attempt, error)

	// GetActiveAttempt returns the in_progress attempt for (test, student),
	// or ErrNotFound when there is none.
	GetActiveAttempt(ctx context.Context, testID uint, studentID string) (*models.Attempt, error)

	// Update writes the attempt back, guarded by its Version field; the
	// stored version must match attempt.Version, which is then incremented.
	Update(ctx context.Context, attempt *models.Attempt) error

	List(ctx context.Context, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// GetExpired returns in_progress attempts whose exam clock ran out before
	// the cutoff (cutoff already includes any grace).
	GetExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error)
}

// GradeRepository stores derived grade summaries for reporting consumers.
type GradeRepository interface {
	Upsert(ctx context.Context, summary *models.GradeSummary) error
	GetByAttempt(ctx context.Context, attemptID string) (*models.GradeSummary, error)
}

// Repository aggregates the per-entity repositories behind one injection point.
type Repository interface {
	Test() TestRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Grade() GradeRepository
}
