package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories"
)

// AssignmentSelector produces the ordered question-id list for one attempt.
// Each attempt gets an independent random draw; determinism is intentionally
// not offered.
type AssignmentSelector struct {
	questions repositories.QuestionRepository
}

func NewAssignmentSelector(questions repositories.QuestionRepository) *AssignmentSelector {
	return &AssignmentSelector{questions: questions}
}

// Select returns the question ids assigned to a new attempt on the given
// test. A fixed question list keeps its set and scrambles its order; an open
// test draws QuestionCount ids from the eligible pool for (subject, grade).
func (s *AssignmentSelector) Select(ctx context.Context, test *models.Test) ([]uint, error) {
	if len(test.QuestionIDs) > 0 {
		assigned := make([]uint, len(test.QuestionIDs))
		copy(assigned, test.QuestionIDs)
		shuffle(assigned)
		return assigned, nil
	}

	pool, err := s.questions.GetEligible(ctx, test.Subject, test.Grade)
	if err != nil {
		return nil, fmt.Errorf("failed to query question pool: %w", err)
	}

	if len(pool) < test.QuestionCount {
		return nil, &InsufficientPoolError{
			Subject:   test.Subject,
			Grade:     test.Grade,
			Required:  test.QuestionCount,
			Available: len(pool),
		}
	}

	ids := make([]uint, len(pool))
	for i, q := range pool {
		ids[i] = q.ID
	}
	shuffle(ids)
	return ids[:test.QuestionCount], nil
}

func shuffle(ids []uint) {
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
