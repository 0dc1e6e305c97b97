package services

import (
	"github.com/VipuDevAI/exam-engine/internal/models"
)

// NormalizeStatuses derives the per-question status map for a checkpoint. It
// is the single place the navigation rules live, so every client is held to
// the same behavior:
//
//   - the result covers exactly the assigned question ids;
//   - a question visited without an answer becomes unanswered (the engine,
//     not the client, performs the not_visited transition);
//   - a non-empty answer makes a question answered;
//   - review membership overrides both, without touching the answer text;
//   - clearing an answer falls back to unanswered (or marked_review).
//
// Unknown ids in the reported map are dropped.
func NormalizeStatuses(
	assigned []uint,
	previous map[uint]models.QuestionNavStatus,
	reported map[uint]models.QuestionNavStatus,
	answers map[uint]string,
	markedForReview []uint,
) map[uint]models.QuestionNavStatus {
	marked := make(map[uint]bool, len(markedForReview))
	for _, id := range markedForReview {
		marked[id] = true
	}

	statuses := make(map[uint]models.QuestionNavStatus, len(assigned))
	for _, id := range assigned {
		visited := previous[id] != "" && previous[id] != models.NavNotVisited
		if reportedStatus, ok := reported[id]; ok && reportedStatus != models.NavNotVisited {
			visited = true
		}

		answer, hasAnswer := answers[id]
		answered := hasAnswer && answer != ""

		switch {
		case marked[id]:
			statuses[id] = models.NavMarkedReview
		case answered:
			statuses[id] = models.NavAnswered
		case visited:
			statuses[id] = models.NavUnanswered
		default:
			statuses[id] = models.NavNotVisited
		}
	}
	return statuses
}

// InitialStatuses returns the all-not_visited map for a fresh attempt.
func InitialStatuses(assigned []uint) map[uint]models.QuestionNavStatus {
	statuses := make(map[uint]models.QuestionNavStatus, len(assigned))
	for _, id := range assigned {
		statuses[id] = models.NavNotVisited
	}
	return statuses
}

// filterAssigned drops answer and review entries for ids outside the
// assignment, preserving the invariant that answers' keys are a subset of the
// assigned ids.
func filterAssigned(assigned []uint, answers map[uint]string, markedForReview []uint) (map[uint]string, []uint) {
	assignedSet := make(map[uint]bool, len(assigned))
	for _, id := range assigned {
		assignedSet[id] = true
	}

	filteredAnswers := make(map[uint]string, len(answers))
	for id, answer := range answers {
		if assignedSet[id] {
			filteredAnswers[id] = answer
		}
	}

	var filteredMarked []uint
	seen := make(map[uint]bool, len(markedForReview))
	for _, id := range markedForReview {
		if assignedSet[id] && !seen[id] {
			filteredMarked = append(filteredMarked, id)
			seen[id] = true
		}
	}
	return filteredAnswers, filteredMarked
}
