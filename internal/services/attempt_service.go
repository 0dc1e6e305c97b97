package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/VipuDevAI/exam-engine/internal/cache"
	"github.com/VipuDevAI/exam-engine/internal/events"
	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
	"github.com/VipuDevAI/exam-engine/internal/utils"
)

type attemptService struct {
	repo      repositories.Repository
	selector  *AssignmentSelector
	flags     cache.FeatureFlags
	locks     cache.Locker
	publisher events.Publisher
	logger    utils.Logger
	validator *utils.Validator

	// now is swappable in tests.
	now func() time.Time
}

// NewAttemptService creates the attempt lifecycle controller.
func NewAttemptService(
	repo repositories.Repository,
	flags cache.FeatureFlags,
	locks cache.Locker,
	publisher events.Publisher,
	logger utils.Logger,
) AttemptService {
	return &attemptService{
		repo:      repo,
		selector:  NewAssignmentSelector(repo.Question()),
		flags:     flags,
		locks:     locks,
		publisher: publisher,
		logger:    logger,
		validator: utils.NewValidator(),
		now:       time.Now,
	}
}

// ===== LIFECYCLE =====

func (s *attemptService) StartExam(ctx context.Context, req *StartExamRequest) (*models.Attempt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	enabled, err := s.flags.ExamEnabled(ctx, req.SchoolID)
	if err != nil {
		s.logger.LogError(err, "Feature flag lookup failed, denying start", "school_id", req.SchoolID)
		return nil, fmt.Errorf("failed to check exam availability: %w", err)
	}
	if !enabled {
		return nil, ErrExamDisabled
	}

	release, err := s.locks.Acquire(ctx, fmt.Sprintf("start:%d:%s", req.TestID, req.StudentID))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire start lock: %w", err)
	}
	defer release()

	// Starting twice resumes: the active attempt is returned unchanged.
	existing, err := s.repo.Attempt().GetActiveAttempt(ctx, req.TestID, req.StudentID)
	if err == nil {
		s.logger.InfoContext(ctx, "Resuming active attempt",
			"attempt_id", existing.ID,
			"test_id", req.TestID,
			"student_id", req.StudentID)
		return existing, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check for active attempt: %w", err)
	}

	test, err := s.repo.Test().GetByID(ctx, req.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to load test: %w", err)
	}
	if !test.IsActive {
		return nil, ErrExamDisabled
	}

	assigned, err := s.selector.Select(ctx, test)
	if err != nil {
		return nil, err
	}

	now := s.now()
	durationSeconds := test.EffectiveDurationMinutes() * 60

	attempt := &models.Attempt{
		ID:                   uuid.NewString(),
		TestID:               test.ID,
		StudentID:            req.StudentID,
		SchoolID:             req.SchoolID,
		AssignedQuestionIDs:  assigned,
		Answers:              map[uint]string{},
		QuestionStatuses:     InitialStatuses(assigned),
		DurationSeconds:      durationSeconds,
		TimeRemainingSeconds: durationSeconds,
		ExpiresAt:            now.Add(time.Duration(durationSeconds) * time.Second),
		Status:               models.AttemptInProgress,
		StartedAt:            now,
		TotalMarks:           test.TotalMarks,
		ManualScores:         map[uint]float64{},
		Version:              1,
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		if repositories.IsDuplicateActiveError(err) {
			// Lost the start race; hand back the winner.
			winner, getErr := s.repo.Attempt().GetActiveAttempt(ctx, req.TestID, req.StudentID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrent attempt: %w", getErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.InfoContext(ctx, "Attempt started",
		"attempt_id", attempt.ID,
		"test_id", test.ID,
		"student_id", req.StudentID,
		"question_count", len(assigned),
		"duration_seconds", durationSeconds)

	s.publish(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedData{
		AttemptID:     attempt.ID,
		TestID:        attempt.TestID,
		StudentID:     attempt.StudentID,
		SchoolID:      attempt.SchoolID,
		QuestionCount: len(assigned),
		DurationSecs:  durationSeconds,
		StartedAt:     attempt.StartedAt,
	}))

	return attempt, nil
}

func (s *attemptService) SaveState(ctx context.Context, req *SaveStateRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	_, err := s.updateWithRetry(ctx, req.AttemptID, func(attempt *models.Attempt) error {
		if attempt.Status != models.AttemptInProgress {
			return newStateError(attempt.ID, "checkpoint", attempt.Status)
		}

		answers, marked := filterAssigned(attempt.AssignedQuestionIDs, req.Answers, req.MarkedForReview)
		attempt.Answers = answers
		attempt.MarkedForReview = marked
		attempt.QuestionStatuses = NormalizeStatuses(
			attempt.AssignedQuestionIDs, attempt.QuestionStatuses, req.QuestionStatuses, answers, marked)
		attempt.TimeRemainingSeconds = s.clampRemaining(attempt, req.TimeRemainingSeconds)
		if req.VisibilityEvents > attempt.VisibilityEvents {
			attempt.VisibilityEvents = req.VisibilityEvents
		}
		return nil
	})
	return err
}

func (s *attemptService) SubmitExam(ctx context.Context, req *SubmitExamRequest) (*SubmitResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.finalize(ctx, req.AttemptID, req.Answers, req.TimeRemainingSeconds, false)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		AttemptID:          attempt.ID,
		Status:             attempt.Status,
		Score:              attempt.Score,
		TotalMarks:         attempt.TotalMarks,
		Percentage:         attempt.Percentage,
		NeedsManualMarking: attempt.NeedsManualMarking(),
	}, nil
}

// SubmitExpired finalizes an overdue attempt on the student's behalf with the
// last-saved answers and a frozen clock of zero.
func (s *attemptService) SubmitExpired(ctx context.Context, attemptID string) error {
	_, err := s.finalize(ctx, attemptID, nil, 0, true)
	return err
}

// finalize is the shared submission path: score, freeze the clock, move the
// attempt out of in_progress. A nil answers map keeps the last checkpoint.
func (s *attemptService) finalize(ctx context.Context, attemptID string, answers map[uint]string, reportedRemaining int, forced bool) (*models.Attempt, error) {
	release, err := s.locks.Acquire(ctx, "attempt:"+attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire attempt lock: %w", err)
	}
	defer release()

	current, err := s.getForUpdate(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.AttemptInProgress {
		return nil, newStateError(current.ID, "submit", current.Status)
	}

	// Assigned ids never change after creation, so one fetch serves all retries.
	questions, err := s.loadQuestions(ctx, current.AssignedQuestionIDs)
	if err != nil {
		return nil, err
	}

	attempt, err := s.updateWithRetry(ctx, attemptID, func(attempt *models.Attempt) error {
		if attempt.Status != models.AttemptInProgress {
			return newStateError(attempt.ID, "submit", attempt.Status)
		}

		if answers != nil {
			filtered, marked := filterAssigned(attempt.AssignedQuestionIDs, answers, attempt.MarkedForReview)
			attempt.Answers = filtered
			attempt.MarkedForReview = marked
		}
		attempt.QuestionStatuses = NormalizeStatuses(
			attempt.AssignedQuestionIDs, attempt.QuestionStatuses, nil, attempt.Answers, attempt.MarkedForReview)

		if forced {
			attempt.TimeRemainingSeconds = 0
		} else {
			attempt.TimeRemainingSeconds = s.clampRemaining(attempt, reportedRemaining)
		}

		now := s.now()
		attempt.SubmittedAt = &now

		breakdown := ScoreAttempt(attempt.AssignedQuestionIDs, questions, attempt.Answers)
		attempt.AutoScore = breakdown.AutoScore
		attempt.PendingManualIDs = breakdown.PendingQuestionIDs

		if breakdown.NeedsManualMarking {
			attempt.Status = models.AttemptSubmitted
			attempt.Score = nil
			attempt.Percentage = nil
		} else {
			score, percentage := FinalizeScore(breakdown.AutoScore, nil, attempt.TotalMarks)
			attempt.Status = models.AttemptMarked
			attempt.Score = &score
			attempt.Percentage = &percentage
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Attempt submitted",
		"attempt_id", attempt.ID,
		"status", attempt.Status,
		"auto_submitted", forced,
		"needs_manual_marking", attempt.NeedsManualMarking())

	s.publish(ctx, events.NewEvent(events.EventAttemptSubmitted, events.AttemptSubmittedData{
		AttemptID:          attempt.ID,
		TestID:             attempt.TestID,
		StudentID:          attempt.StudentID,
		SchoolID:           attempt.SchoolID,
		SubmittedAt:        *attempt.SubmittedAt,
		AutoSubmitted:      forced,
		NeedsManualMarking: attempt.NeedsManualMarking(),
		Score:              attempt.Score,
	}))

	if attempt.Status == models.AttemptMarked {
		s.recordFinalGrade(ctx, attempt)
	}
	return attempt, nil
}

// ===== READS =====

func (s *attemptService) GetAttempt(ctx context.Context, attemptID string) (*models.Attempt, error) {
	return s.getForUpdate(ctx, attemptID)
}

func (s *attemptService) GetActiveAttempt(ctx context.Context, testID uint, studentID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetActiveAttempt(ctx, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active attempt: %w", err)
	}
	return attempt, nil
}

func (s *attemptService) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	attempts, total, err := s.repo.Attempt().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

// ===== MANUAL MARKING =====

func (s *attemptService) RecordManualScore(ctx context.Context, req *RecordManualScoreRequest) (*models.Attempt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, "attempt:"+req.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire attempt lock: %w", err)
	}
	defer release()

	current, err := s.getForUpdate(ctx, req.AttemptID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.AttemptSubmitted {
		return nil, newStateError(current.ID, "record manual score for", current.Status)
	}
	if !containsID(current.PendingManualIDs, req.QuestionID) {
		return nil, &ManualScoreError{
			AttemptID:  req.AttemptID,
			QuestionID: req.QuestionID,
			Marks:      req.Marks,
			Reason:     "question does not require manual marking on this attempt",
		}
	}

	questions, err := s.loadQuestions(ctx, []uint{req.QuestionID})
	if err != nil {
		return nil, err
	}
	if question, ok := questions[req.QuestionID]; ok && req.Marks > question.Marks {
		return nil, &ManualScoreError{
			AttemptID:  req.AttemptID,
			QuestionID: req.QuestionID,
			Marks:      req.Marks,
			Reason:     fmt.Sprintf("exceeds the question's maximum of %g", question.Marks),
		}
	}

	return s.updateWithRetry(ctx, req.AttemptID, func(attempt *models.Attempt) error {
		if attempt.Status != models.AttemptSubmitted {
			return newStateError(attempt.ID, "record manual score for", attempt.Status)
		}
		if attempt.ManualScores == nil {
			attempt.ManualScores = map[uint]float64{}
		}
		attempt.ManualScores[req.QuestionID] = req.Marks
		return nil
	})
}

func (s *attemptService) CompleteMarking(ctx context.Context, req *CompleteMarkingRequest) (*models.Attempt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, "attempt:"+req.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire attempt lock: %w", err)
	}
	defer release()

	attempt, err := s.updateWithRetry(ctx, req.AttemptID, func(attempt *models.Attempt) error {
		if attempt.Status != models.AttemptSubmitted {
			return newStateError(attempt.ID, "complete marking for", attempt.Status)
		}
		for _, id := range attempt.PendingManualIDs {
			if _, ok := attempt.ManualScores[id]; !ok {
				return fmt.Errorf("%w: question %d has no manual score", ErrMarkingIncomplete, id)
			}
		}

		score, percentage := FinalizeScore(attempt.AutoScore, attempt.ManualScores, attempt.TotalMarks)
		attempt.Score = &score
		attempt.Percentage = &percentage
		attempt.Status = models.AttemptMarked
		if req.Remarks != nil {
			attempt.TeacherRemarks = req.Remarks
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Marking completed",
		"attempt_id", attempt.ID,
		"score", *attempt.Score,
		"total_marks", attempt.TotalMarks)

	s.recordFinalGrade(ctx, attempt)
	return attempt, nil
}

// ===== INTERNALS =====

func (s *attemptService) getForUpdate(ctx context.Context, attemptID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}
	return attempt, nil
}

// updateWithRetry applies mutate to a fresh read of the attempt and writes it
// back under the optimistic version guard, retrying once on a lost race.
func (s *attemptService) updateWithRetry(ctx context.Context, attemptID string, mutate func(*models.Attempt) error) (*models.Attempt, error) {
	for try := 0; try < 2; try++ {
		attempt, err := s.getForUpdate(ctx, attemptID)
		if err != nil {
			return nil, err
		}
		if err := mutate(attempt); err != nil {
			return nil, err
		}

		err = s.repo.Attempt().Update(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		if !repositories.IsVersionConflictError(err) {
			return nil, fmt.Errorf("failed to update attempt: %w", err)
		}
		s.logger.Warn("Attempt write lost version race, retrying", "attempt_id", attemptID)
	}
	return nil, ErrConcurrentModification
}

// clampRemaining bounds a client-reported clock to what is physically
// possible: it can never exceed the stored remainder nor the wall-clock time
// left since the attempt started, and never goes below zero.
func (s *attemptService) clampRemaining(attempt *models.Attempt, reported int) int {
	remaining := reported
	if remaining > attempt.TimeRemainingSeconds {
		s.logger.Warn("Client clock ahead of stored remainder, clamping",
			"attempt_id", attempt.ID,
			"reported", reported,
			"stored", attempt.TimeRemainingSeconds)
		remaining = attempt.TimeRemainingSeconds
	}
	elapsed := int(s.now().Sub(attempt.StartedAt).Seconds())
	if possible := attempt.DurationSeconds - elapsed; remaining > possible {
		remaining = possible
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (s *attemptService) loadQuestions(ctx context.Context, ids []uint) (map[uint]*models.Question, error) {
	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// recordFinalGrade writes the GradeSummary and publishes the marked/grade
// events. Failures here are logged but never fail the student-facing call;
// the attempt itself is already persisted.
func (s *attemptService) recordFinalGrade(ctx context.Context, attempt *models.Attempt) {
	var subject, grade string
	if test, err := s.repo.Test().GetByID(ctx, attempt.TestID); err == nil {
		subject, grade = test.Subject, test.Grade
	} else {
		s.logger.LogError(err, "Failed to load test for grade summary", "attempt_id", attempt.ID)
	}

	// Fully objective attempts are marked at the moment of submission.
	markedAt := s.now()
	if attempt.SubmittedAt != nil && len(attempt.PendingManualIDs) == 0 {
		markedAt = *attempt.SubmittedAt
	}

	summary := &models.GradeSummary{
		AttemptID:  attempt.ID,
		TestID:     attempt.TestID,
		StudentID:  attempt.StudentID,
		SchoolID:   attempt.SchoolID,
		Subject:    subject,
		Grade:      grade,
		Score:      *attempt.Score,
		TotalMarks: attempt.TotalMarks,
		Percentage: *attempt.Percentage,
		MarkedAt:   markedAt,
	}
	if err := s.repo.Grade().Upsert(ctx, summary); err != nil {
		s.logger.LogError(err, "Failed to upsert grade summary", "attempt_id", attempt.ID)
	}

	s.publish(ctx, events.NewEvent(events.EventAttemptMarked, events.AttemptMarkedData{
		AttemptID:  attempt.ID,
		TestID:     attempt.TestID,
		StudentID:  attempt.StudentID,
		SchoolID:   attempt.SchoolID,
		Score:      *attempt.Score,
		TotalMarks: attempt.TotalMarks,
		Percentage: *attempt.Percentage,
		MarkedAt:   markedAt,
	}))
	s.publish(ctx, events.NewEvent(events.EventGradeRecorded, events.GradeRecordedData{
		AttemptID:  attempt.ID,
		TestID:     attempt.TestID,
		StudentID:  attempt.StudentID,
		SchoolID:   attempt.SchoolID,
		Subject:    subject,
		Grade:      grade,
		Score:      *attempt.Score,
		TotalMarks: attempt.TotalMarks,
		Percentage: *attempt.Percentage,
	}))
}

func (s *attemptService) publish(ctx context.Context, event *events.AttemptEvent) {
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.LogError(err, "Failed to publish event", "event_type", event.Type)
	}
}

func containsID(ids []uint, id uint) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
