package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/VipuDevAI/exam-engine/internal/models"
)

func TestNormalizeStatuses_CoversExactlyAssigned(t *testing.T) {
	assigned := []uint{1, 2, 3}
	reported := map[uint]models.QuestionNavStatus{
		1:  models.NavAnswered,
		99: models.NavAnswered, // not assigned, must be dropped
	}

	statuses := NormalizeStatuses(assigned, nil, reported, map[uint]string{1: "x"}, nil)
	assert.Len(t, statuses, len(assigned))
	for _, id := range assigned {
		assert.Contains(t, statuses, id)
	}
	assert.NotContains(t, statuses, uint(99))
}

func TestNormalizeStatuses_Rules(t *testing.T) {
	tests := []struct {
		name     string
		previous models.QuestionNavStatus
		reported models.QuestionNavStatus
		answer   string
		marked   bool
		want     models.QuestionNavStatus
	}{
		{"untouched stays not_visited", "", "", "", false, models.NavNotVisited},
		{"visit without answer becomes unanswered", "", models.NavUnanswered, "", false, models.NavUnanswered},
		{"client cannot claim answered without an answer", "", models.NavAnswered, "", false, models.NavUnanswered},
		{"answer makes answered", "", models.NavUnanswered, "b", false, models.NavAnswered},
		{"review overrides answered", "", models.NavAnswered, "b", true, models.NavMarkedReview},
		{"review without answer", "", "", "", true, models.NavMarkedReview},
		{"cleared answer reverts to unanswered", models.NavAnswered, "", "", false, models.NavUnanswered},
		{"previously visited stays visited", models.NavUnanswered, models.NavNotVisited, "", false, models.NavUnanswered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := map[uint]models.QuestionNavStatus{}
			if tt.previous != "" {
				previous[1] = tt.previous
			}
			reported := map[uint]models.QuestionNavStatus{}
			if tt.reported != "" {
				reported[1] = tt.reported
			}
			answers := map[uint]string{}
			if tt.answer != "" {
				answers[1] = tt.answer
			}
			var marked []uint
			if tt.marked {
				marked = []uint{1}
			}

			statuses := NormalizeStatuses([]uint{1}, previous, reported, answers, marked)
			assert.Equal(t, tt.want, statuses[1])
		})
	}
}

func TestNormalizeStatuses_ReviewKeepsAnswerText(t *testing.T) {
	answers := map[uint]string{1: "kept"}
	statuses := NormalizeStatuses([]uint{1}, nil, nil, answers, []uint{1})

	assert.Equal(t, models.NavMarkedReview, statuses[1])
	assert.Equal(t, "kept", answers[1], "review membership never touches the answer")
}

func TestInitialStatuses(t *testing.T) {
	statuses := InitialStatuses([]uint{4, 5, 6})
	assert.Len(t, statuses, 3)
	for _, status := range statuses {
		assert.Equal(t, models.NavNotVisited, status)
	}
}

func TestFilterAssigned(t *testing.T) {
	assigned := []uint{1, 2, 3}
	answers := map[uint]string{1: "a", 99: "dropped"}
	marked := []uint{2, 2, 99}

	filteredAnswers, filteredMarked := filterAssigned(assigned, answers, marked)
	assert.Equal(t, map[uint]string{1: "a"}, filteredAnswers)
	assert.Equal(t, []uint{2}, filteredMarked, "duplicates and unassigned ids are dropped")
}
