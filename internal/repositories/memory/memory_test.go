package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
)

func newAttempt(id string, testID uint, studentID string, status models.AttemptStatus) *models.Attempt {
	return &models.Attempt{
		ID:                   id,
		TestID:               testID,
		StudentID:            studentID,
		SchoolID:             "school-1",
		AssignedQuestionIDs:  []uint{1, 2},
		Answers:              map[uint]string{},
		QuestionStatuses:     map[uint]models.QuestionNavStatus{1: models.NavNotVisited, 2: models.NavNotVisited},
		DurationSeconds:      1800,
		TimeRemainingSeconds: 1800,
		ExpiresAt:            time.Now().Add(30 * time.Minute),
		Status:               status,
		StartedAt:            time.Now(),
		TotalMarks:           10,
		Version:              1,
	}
}

func TestCreate_RejectsSecondActiveAttempt(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Attempt().Create(ctx, newAttempt("a1", 1, "s1", models.AttemptInProgress)))

	err := store.Attempt().Create(ctx, newAttempt("a2", 1, "s1", models.AttemptInProgress))
	assert.True(t, repositories.IsDuplicateActiveError(err))

	// Different student, and a finalized attempt, are both fine.
	assert.NoError(t, store.Attempt().Create(ctx, newAttempt("a3", 1, "s2", models.AttemptInProgress)))
	assert.NoError(t, store.Attempt().Create(ctx, newAttempt("a4", 1, "s3", models.AttemptSubmitted)))
}

func TestUpdate_VersionGuard(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Attempt().Create(ctx, newAttempt("a1", 1, "s1", models.AttemptInProgress)))

	first, err := store.Attempt().GetByID(ctx, "a1")
	require.NoError(t, err)
	second, err := store.Attempt().GetByID(ctx, "a1")
	require.NoError(t, err)

	first.TimeRemainingSeconds = 1700
	require.NoError(t, store.Attempt().Update(ctx, first))
	assert.Equal(t, 2, first.Version, "successful update bumps the version")

	// The stale copy must lose.
	second.TimeRemainingSeconds = 1650
	err = store.Attempt().Update(ctx, second)
	assert.True(t, repositories.IsVersionConflictError(err))

	saved, err := store.Attempt().GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1700, saved.TimeRemainingSeconds)
}

func TestGetByID_ReturnsIsolatedCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Attempt().Create(ctx, newAttempt("a1", 1, "s1", models.AttemptInProgress)))

	got, err := store.Attempt().GetByID(ctx, "a1")
	require.NoError(t, err)
	got.Answers[1] = "mutated"
	got.QuestionStatuses[1] = models.NavAnswered

	fresh, err := store.Attempt().GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Answers, "mutating a returned attempt must not touch the store")
	assert.Equal(t, models.NavNotVisited, fresh.QuestionStatuses[1])
}

func TestGetExpired(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	overdue := newAttempt("a1", 1, "s1", models.AttemptInProgress)
	overdue.ExpiresAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.Attempt().Create(ctx, overdue))

	current := newAttempt("a2", 1, "s2", models.AttemptInProgress)
	require.NoError(t, store.Attempt().Create(ctx, current))

	finalized := newAttempt("a3", 1, "s3", models.AttemptSubmitted)
	finalized.ExpiresAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, store.Attempt().Create(ctx, finalized))

	expired, err := store.Attempt().GetExpired(ctx, time.Now().Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "a1", expired[0].ID)
}

func TestGrade_UpsertReplacesByAttempt(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Grade().Upsert(ctx, &models.GradeSummary{AttemptID: "a1", Score: 5, TotalMarks: 10, Percentage: 50}))
	require.NoError(t, store.Grade().Upsert(ctx, &models.GradeSummary{AttemptID: "a1", Score: 7, TotalMarks: 10, Percentage: 70}))

	summary, err := store.Grade().GetByAttempt(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 7.0, summary.Score)

	_, err = store.Grade().GetByAttempt(ctx, "missing")
	assert.True(t, repositories.IsNotFoundError(err))
}
