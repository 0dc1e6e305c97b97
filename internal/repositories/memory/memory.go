// Package memory provides an in-process implementation of the repository
// contracts. It backs tests and single-node deployments; the postgres package
// is the production store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
)

type Store struct {
	mu          sync.RWMutex
	tests       map[uint]*models.Test
	questions   map[uint]*models.Question
	attempts    map[string]*models.Attempt
	grades      map[string]*models.GradeSummary
	nextGradeID uint
}

func NewStore() *Store {
	return &Store{
		tests:     make(map[uint]*models.Test),
		questions: make(map[uint]*models.Question),
		attempts:  make(map[string]*models.Attempt),
		grades:    make(map[string]*models.GradeSummary),
	}
}

func (s *Store) Test() repositories.TestRepository         { return (*testStore)(s) }
func (s *Store) Question() repositories.QuestionRepository { return (*questionStore)(s) }
func (s *Store) Attempt() repositories.AttemptRepository   { return (*attemptStore)(s) }
func (s *Store) Grade() repositories.GradeRepository       { return (*gradeStore)(s) }

// SeedTest and SeedQuestions load fixtures; they are intended for tests and
// the memory-backed deployment's bootstrap.
func (s *Store) SeedTest(test *models.Test) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests[test.ID] = test
}

func (s *Store) SeedQuestions(questions ...*models.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.questions[q.ID] = q
	}
}

// ===== TESTS =====

type testStore Store

func (s *testStore) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	test, ok := s.tests[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *test
	return &copied, nil
}

// ===== QUESTIONS =====

type questionStore Store

func (s *questionStore) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *questionStore) GetEligible(ctx context.Context, subject, grade string) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Question
	for _, q := range s.questions {
		if q.Subject == subject && q.Grade == grade && q.Verified && q.UsableForAssessment {
			copied := *q
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== ATTEMPTS =====

type attemptStore Store

func (s *attemptStore) Create(ctx context.Context, attempt *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt.Status == models.AttemptInProgress {
		for _, existing := range s.attempts {
			if existing.TestID == attempt.TestID &&
				existing.StudentID == attempt.StudentID &&
				existing.Status == models.AttemptInProgress {
				return repositories.ErrDuplicateActiveAttempt
			}
		}
	}

	if attempt.Version == 0 {
		attempt.Version = 1
	}
	now := time.Now()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *attemptStore) GetByID(ctx context.Context, id string) (*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *attemptStore) GetActiveAttempt(ctx context.Context, testID uint, studentID string) (*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, attempt := range s.attempts {
		if attempt.TestID == testID && attempt.StudentID == studentID && attempt.Status == models.AttemptInProgress {
			return cloneAttempt(attempt), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *attemptStore) Update(ctx context.Context, attempt *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Version != attempt.Version {
		return repositories.ErrVersionConflict
	}

	attempt.Version++
	attempt.UpdatedAt = time.Now()
	s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (s *attemptStore) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Attempt
	for _, attempt := range s.attempts {
		if filters.Status != "" && attempt.Status != filters.Status {
			continue
		}
		if filters.TestID != nil && attempt.TestID != *filters.TestID {
			continue
		}
		if filters.StudentID != nil && attempt.StudentID != *filters.StudentID {
			continue
		}
		if filters.SchoolID != nil && attempt.SchoolID != *filters.SchoolID {
			continue
		}
		matched = append(matched, cloneAttempt(attempt))
	}

	asc := filters.SortOrder == "asc"
	sort.Slice(matched, func(i, j int) bool {
		if asc {
			return matched[i].StartedAt.Before(matched[j].StartedAt)
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := int64(len(matched))
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

func (s *attemptStore) GetExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var expired []*models.Attempt
	for _, attempt := range s.attempts {
		if attempt.Status != models.AttemptInProgress {
			continue
		}
		if attempt.ExpiresAt.After(cutoff) {
			continue
		}
		expired = append(expired, cloneAttempt(attempt))
		if limit > 0 && len(expired) >= limit {
			break
		}
	}
	return expired, nil
}

// ===== GRADES =====

type gradeStore Store

func (s *gradeStore) Upsert(ctx context.Context, summary *models.GradeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.grades[summary.AttemptID]; ok {
		summary.ID = existing.ID
	} else {
		s.nextGradeID++
		summary.ID = s.nextGradeID
		summary.CreatedAt = time.Now()
	}
	copied := *summary
	s.grades[summary.AttemptID] = &copied
	return nil
}

func (s *gradeStore) GetByAttempt(ctx context.Context, attemptID string) (*models.GradeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.grades[attemptID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *summary
	return &copied, nil
}

// cloneAttempt deep-copies the maps and slices so callers cannot mutate the
// stored record through a returned pointer.
func cloneAttempt(a *models.Attempt) *models.Attempt {
	copied := *a

	copied.AssignedQuestionIDs = append([]uint(nil), a.AssignedQuestionIDs...)
	copied.MarkedForReview = append([]uint(nil), a.MarkedForReview...)
	copied.PendingManualIDs = append([]uint(nil), a.PendingManualIDs...)

	if a.Answers != nil {
		copied.Answers = make(map[uint]string, len(a.Answers))
		for k, v := range a.Answers {
			copied.Answers[k] = v
		}
	}
	if a.QuestionStatuses != nil {
		copied.QuestionStatuses = make(map[uint]models.QuestionNavStatus, len(a.QuestionStatuses))
		for k, v := range a.QuestionStatuses {
			copied.QuestionStatuses[k] = v
		}
	}
	if a.ManualScores != nil {
		copied.ManualScores = make(map[uint]float64, len(a.ManualScores))
		for k, v := range a.ManualScores {
			copied.ManualScores[k] = v
		}
	}
	if a.Score != nil {
		score := *a.Score
		copied.Score = &score
	}
	if a.Percentage != nil {
		pct := *a.Percentage
		copied.Percentage = &pct
	}
	if a.SubmittedAt != nil {
		ts := *a.SubmittedAt
		copied.SubmittedAt = &ts
	}
	if a.TeacherRemarks != nil {
		remarks := *a.TeacherRemarks
		copied.TeacherRemarks = &remarks
	}
	return &copied
}
