package services

import (
	"context"
	"errors"
	"time"

	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"github.com/VipuDevAI/exam-engine/internal/utils"
)

const reaperBatchSize = 100

// Reaper is the server-side backstop for clients that vanish mid-exam. It
// periodically force-submits in_progress attempts whose exam clock expired
// longer than the grace window ago, using their last-saved answers.
type Reaper struct {
	attempts repositories.AttemptRepository
	service  AttemptService
	interval time.Duration
	grace    time.Duration
	logger   utils.Logger

	now func() time.Time
}

func NewReaper(attempts repositories.AttemptRepository, service AttemptService, interval, grace time.Duration, logger utils.Logger) *Reaper {
	return &Reaper{
		attempts: attempts,
		service:  service,
		interval: interval,
		grace:    grace,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. Call it in its own
// goroutine.
func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("Reaper started", "interval", r.interval.String(), "grace", r.grace.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep force-submits one batch of overdue attempts and returns how many were
// finalized.
func (r *Reaper) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.grace)
	expired, err := r.attempts.GetExpired(ctx, cutoff, reaperBatchSize)
	if err != nil {
		r.logger.LogError(err, "Reaper failed to query expired attempts")
		return 0
	}

	submitted := 0
	for _, attempt := range expired {
		if err := r.service.SubmitExpired(ctx, attempt.ID); err != nil {
			// A student submitting in parallel is fine; anything else is not.
			var stateErr *StateTransitionError
			if IsConflict(err) || errors.As(err, &stateErr) {
				continue
			}
			r.logger.LogError(err, "Reaper failed to force-submit attempt", "attempt_id", attempt.ID)
			continue
		}
		submitted++
		r.logger.Info("Reaper force-submitted expired attempt",
			"attempt_id", attempt.ID,
			"expired_at", attempt.ExpiresAt)
	}
	return submitted
}
