package services

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/exam-engine/internal/models"
	"github.com/VipuDevAI/exam-engine/internal/repositories/memory"
)

func seedPool(store *memory.Store, subject, grade string, count int) []uint {
	answer := "a"
	ids := make([]uint, 0, count)
	for i := 1; i <= count; i++ {
		store.SeedQuestions(&models.Question{
			ID:                  uint(i),
			Type:                models.SingleChoice,
			Text:                "q",
			CorrectAnswer:       &answer,
			Marks:               1,
			Subject:             subject,
			Grade:               grade,
			Verified:            true,
			UsableForAssessment: true,
		})
		ids = append(ids, uint(i))
	}
	return ids
}

func TestSelect_FixedListKeepsSetScramblesOrder(t *testing.T) {
	store := memory.NewStore()
	selector := NewAssignmentSelector(store.Question())

	fixed := []uint{10, 20, 30, 40, 50}
	test := &models.Test{ID: 1, QuestionIDs: fixed, QuestionCount: 5}

	assigned, err := selector.Select(context.Background(), test)
	require.NoError(t, err)
	require.Len(t, assigned, len(fixed))

	sorted := append([]uint(nil), assigned...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	assert.Equal(t, fixed, sorted, "fixed list must keep the same question set")

	// The input slice must not be reordered in place.
	assert.Equal(t, []uint{10, 20, 30, 40, 50}, []uint(test.QuestionIDs))
}

func TestSelect_DrawsFromEligiblePool(t *testing.T) {
	store := memory.NewStore()
	pool := seedPool(store, "Mathematics", "8", 10)

	// Ineligible questions must never be drawn.
	store.SeedQuestions(
		&models.Question{ID: 100, Type: models.SingleChoice, Subject: "Mathematics", Grade: "8", Verified: false, UsableForAssessment: true},
		&models.Question{ID: 101, Type: models.SingleChoice, Subject: "Mathematics", Grade: "8", Verified: true, UsableForAssessment: false},
		&models.Question{ID: 102, Type: models.SingleChoice, Subject: "Science", Grade: "8", Verified: true, UsableForAssessment: true},
	)

	selector := NewAssignmentSelector(store.Question())
	test := &models.Test{ID: 1, Subject: "Mathematics", Grade: "8", QuestionCount: 4}

	assigned, err := selector.Select(context.Background(), test)
	require.NoError(t, err)
	require.Len(t, assigned, 4)

	eligible := make(map[uint]bool, len(pool))
	for _, id := range pool {
		eligible[id] = true
	}
	seen := make(map[uint]bool)
	for _, id := range assigned {
		assert.True(t, eligible[id], "drew ineligible question %d", id)
		assert.False(t, seen[id], "question %d drawn twice", id)
		seen[id] = true
	}
}

func TestSelect_InsufficientPool(t *testing.T) {
	store := memory.NewStore()
	seedPool(store, "Science", "6", 40)

	selector := NewAssignmentSelector(store.Question())
	test := &models.Test{ID: 1, Subject: "Science", Grade: "6", QuestionCount: 50}

	_, err := selector.Select(context.Background(), test)
	require.Error(t, err)

	var poolErr *InsufficientPoolError
	require.ErrorAs(t, err, &poolErr)
	assert.Equal(t, "Science", poolErr.Subject)
	assert.Equal(t, "6", poolErr.Grade)
	assert.Equal(t, 50, poolErr.Required)
	assert.Equal(t, 40, poolErr.Available)
	assert.True(t, IsPrecondition(err))
}
