package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/exam-engine/internal/events"
	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/utils"
)

func newReaperFixture(t *testing.T) (*attemptService, *Reaper, *events.MockPublisher, func(time.Time)) {
	t.Helper()
	svc, store, publisher := newEngine(t, true)
	seedObjectiveTest(store)

	discard := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reaper := NewReaper(store.Attempt(), svc, time.Second, 2*time.Minute, discard)

	setNow := func(now time.Time) {
		svc.now = func() time.Time { return now }
		reaper.now = func() time.Time { return now }
	}
	return svc, reaper, publisher, setNow
}

func TestReaper_ForceSubmitsOverdueAttempt(t *testing.T) {
	svc, reaper, publisher, setNow := newReaperFixture(t)
	ctx := context.Background()

	base := time.Now()
	setNow(base)
	attempt, err := svc.StartExam(ctx, startReq(1))
	require.NoError(t, err)

	require.NoError(t, svc.SaveState(ctx, &SaveStateRequest{
		AttemptID:            attempt.ID,
		Answers:              map[uint]string{1: "b"},
		TimeRemainingSeconds: attempt.DurationSeconds,
	}))

	// Past the 30-minute exam clock plus the 2-minute grace window.
	setNow(base.Add(33 * time.Minute))
	submitted := reaper.Sweep(ctx)
	assert.Equal(t, 1, submitted)

	saved, err := svc.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptMarked, saved.Status, "fully objective paper is marked on force-submit")
	assert.Zero(t, saved.TimeRemainingSeconds, "force-submit freezes the clock at zero")
	require.NotNil(t, saved.Score)
	assert.Equal(t, 2.0, *saved.Score, "last-saved answers are what gets scored")

	var sawAutoSubmit bool
	for _, event := range publisher.PublishedEvents() {
		if event.Type != events.EventAttemptSubmitted {
			continue
		}
		data, ok := event.Data.(events.AttemptSubmittedData)
		require.True(t, ok)
		assert.True(t, data.AutoSubmitted)
		sawAutoSubmit = true
	}
	assert.True(t, sawAutoSubmit)
}

func TestReaper_RespectsGraceWindow(t *testing.T) {
	svc, reaper, _, setNow := newReaperFixture(t)
	ctx := context.Background()

	base := time.Now()
	setNow(base)
	attempt, err := svc.StartExam(ctx, startReq(1))
	require.NoError(t, err)

	// Clock expired one minute ago, still inside the grace window.
	setNow(base.Add(31 * time.Minute))
	assert.Zero(t, reaper.Sweep(ctx))

	saved, err := svc.GetAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, saved.Status)
}

func TestReaper_IgnoresFinalizedAttempts(t *testing.T) {
	svc, reaper, _, setNow := newReaperFixture(t)
	ctx := context.Background()

	base := time.Now()
	setNow(base)
	attempt, err := svc.StartExam(ctx, startReq(1))
	require.NoError(t, err)
	_, err = svc.SubmitExam(ctx, &SubmitExamRequest{AttemptID: attempt.ID})
	require.NoError(t, err)

	setNow(base.Add(2 * time.Hour))
	assert.Zero(t, reaper.Sweep(ctx))
}
