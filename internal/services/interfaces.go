package services

import (
	"context"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
)

// AttemptService is the attempt lifecycle controller, the entry point
// external callers invoke.
type AttemptService interface {
	// StartExam creates a new in_progress attempt, or returns the existing
	// active one for (test, student) unchanged.
	StartExam(ctx context.Context, req *StartExamRequest) (*models.Attempt, error)

	// SaveState persists one client checkpoint. Only valid while in_progress.
	SaveState(ctx context.Context, req *SaveStateRequest) error

	// SubmitExam finalizes the attempt, scoring objective questions and
	// flagging subjective ones for manual marking.
	SubmitExam(ctx context.Context, req *SubmitExamRequest) (*SubmitResult, error)

	// SubmitExpired force-submits an overdue attempt with its last-saved
	// answers and a frozen clock of zero; invoked by the reaper.
	SubmitExpired(ctx context.Context, attemptID string) error

	GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error)

	// GetActiveAttempt returns the in_progress attempt for (test, student),
	// or nil when there is none.
	GetActiveAttempt(ctx context.Context, testID uint, studentID string) (*models.Attempt, error)

	List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error)

	// RecordManualScore saves one human-awarded mark on a submitted attempt;
	// partial marking does not change status.
	RecordManualScore(ctx context.Context, req *RecordManualScoreRequest) (*models.Attempt, error)

	// CompleteMarking merges manual marks into the final score and moves the
	// attempt to marked.
	CompleteMarking(ctx context.Context, req *CompleteMarkingRequest) (*models.Attempt, error)
}
