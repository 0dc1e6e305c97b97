package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VipuDevAI/exam-engine/internal/models"
)

func objective(id uint, marks float64, correct string) *models.Question {
	return &models.Question{ID: id, Type: models.SingleChoice, Marks: marks, CorrectAnswer: &correct}
}

func subjective(id uint, marks float64) *models.Question {
	return &models.Question{ID: id, Type: models.ShortAnswer, Marks: marks}
}

func questionMap(questions ...*models.Question) map[uint]*models.Question {
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID
}

func TestScoreAttempt_ObjectiveOnly(t *testing.T) {
	questions := questionMap(
		objective(1, 2, "b"),
		objective(2, 3, "true"),
		objective(3, 5, "42"),
	)
	answers := map[uint]string{
		1: "b",
		2: "false",
		3: "42",
	}

	breakdown := ScoreAttempt([]uint{1, 2, 3}, questions, answers)
	assert.Equal(t, 7.0, breakdown.AutoScore)
	assert.False(t, breakdown.NeedsManualMarking)
	assert.Empty(t, breakdown.PendingQuestionIDs)
}

func TestScoreAttempt_AnswerComparison(t *testing.T) {
	tests := []struct {
		name      string
		correct   string
		submitted string
		match     bool
	}{
		{"exact", "Paris", "Paris", true},
		{"case insensitive", "Paris", "paris", true},
		{"surrounding whitespace trimmed", "Paris", "  Paris \n", true},
		{"numeric compared as text", "7", "7.0", false},
		{"different answer", "Paris", "London", false},
		{"empty answer", "Paris", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			questions := questionMap(objective(1, 4, tt.correct))
			breakdown := ScoreAttempt([]uint{1}, questions, map[uint]string{1: tt.submitted})
			if tt.match {
				assert.Equal(t, 4.0, breakdown.AutoScore)
			} else {
				assert.Zero(t, breakdown.AutoScore)
			}
		})
	}
}

func TestScoreAttempt_SubjectiveFlaggedNotScored(t *testing.T) {
	questions := questionMap(
		objective(1, 2, "b"),
		subjective(2, 5),
		objective(3, 5, "42"),
		subjective(4, 3),
	)
	answers := map[uint]string{1: "b", 2: "an essay", 3: "42", 4: "another essay"}

	breakdown := ScoreAttempt([]uint{1, 2, 3, 4}, questions, answers)
	assert.Equal(t, 7.0, breakdown.AutoScore, "subjective answers contribute nothing automatically")
	assert.True(t, breakdown.NeedsManualMarking)
	assert.Equal(t, []uint{2, 4}, breakdown.PendingQuestionIDs, "pending ids keep assigned order")
}

func TestScoreAttempt_SkipsUnansweredAndUnknown(t *testing.T) {
	questions := questionMap(objective(1, 2, "b"))

	// No answers at all.
	breakdown := ScoreAttempt([]uint{1}, questions, nil)
	assert.Zero(t, breakdown.AutoScore)

	// Assigned id missing from the question map is skipped, not scored.
	breakdown = ScoreAttempt([]uint{1, 99}, questions, map[uint]string{1: "b", 99: "b"})
	assert.Equal(t, 2.0, breakdown.AutoScore)
}

func TestScoreAttempt_Idempotent(t *testing.T) {
	questions := questionMap(objective(1, 2, "b"), subjective(2, 5))
	answers := map[uint]string{1: "b", 2: "text"}

	first := ScoreAttempt([]uint{1, 2}, questions, answers)
	second := ScoreAttempt([]uint{1, 2}, questions, answers)
	assert.Equal(t, first, second)
}

func TestFinalizeScore(t *testing.T) {
	score, percentage := FinalizeScore(7, map[uint]float64{4: 4}, 12)
	assert.Equal(t, 11.0, score)
	assert.Equal(t, 91.67, percentage)

	// Manual marks can never push the score past the attempt total.
	score, percentage = FinalizeScore(10, map[uint]float64{4: 5}, 12)
	assert.Equal(t, 12.0, score)
	assert.Equal(t, 100.0, percentage)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 58.33, Percentage(7, 12))
	assert.Equal(t, 0.0, Percentage(5, 0), "zero total yields zero, not a division panic")
	assert.Equal(t, 100.0, Percentage(12, 12))

	require.NotPanics(t, func() { Percentage(0, -1) })
}
