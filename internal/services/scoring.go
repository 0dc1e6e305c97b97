package services

import (
	"math"
	"strings"

	"github.com/VipuDevAI/exam-engine/internal/models"
)

// ScoreBreakdown is the result of automatic scoring at submission time.
type ScoreBreakdown struct {
	AutoScore          float64 `json:"auto_score"`
	NeedsManualMarking bool    `json:"needs_manual_marking"`

	// PendingQuestionIDs lists subjective questions awaiting a human mark,
	// in assigned order.
	PendingQuestionIDs []uint `json:"pending_question_ids"`
}

// ScoreAttempt computes the automatic score for the assigned questions in
// order. Subjective types contribute 0 until a human supplies their marks and
// are collected in PendingQuestionIDs. The function is pure; persisting the
// result is the caller's job.
func ScoreAttempt(assigned []uint, questions map[uint]*models.Question, answers map[uint]string) ScoreBreakdown {
	var breakdown ScoreBreakdown

	for _, id := range assigned {
		question, ok := questions[id]
		if !ok {
			continue
		}

		if question.Type.RequiresManualMarking() {
			breakdown.NeedsManualMarking = true
			breakdown.PendingQuestionIDs = append(breakdown.PendingQuestionIDs, id)
			continue
		}

		submitted, answered := answers[id]
		if !answered || question.CorrectAnswer == nil {
			continue
		}
		if answersMatch(submitted, *question.CorrectAnswer) {
			breakdown.AutoScore += question.Marks
		}
	}

	return breakdown
}

// answersMatch compares answers as trimmed, case-folded exact strings. No
// partial credit for objective types, and numeric answers are compared as
// text too ("7" and "7.0" do not match) to keep grading outcomes stable.
func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}

// FinalizeScore merges manual marks into the auto score, capped at the
// attempt's total, and derives the percentage.
func FinalizeScore(autoScore float64, manualScores map[uint]float64, totalMarks int) (score, percentage float64) {
	score = autoScore
	for _, marks := range manualScores {
		score += marks
	}
	if totalMarks > 0 && score > float64(totalMarks) {
		score = float64(totalMarks)
	}
	percentage = Percentage(score, totalMarks)
	return score, percentage
}

// Percentage returns score/total as a percentage rounded to two decimals.
func Percentage(score float64, totalMarks int) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return math.Round(score/float64(totalMarks)*100*100) / 100
}
