package usecase

import (
	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// selectDiverse picks up to maxDocuments candidates, preferring one per
// canonical key in score order, then backfilling with the best of the rest.
func selectDiverse(candidates []domain.Candidate, maxDocuments int) []domain.Candidate {
	if maxDocuments <= 0 || len(candidates) == 0 {
		return []domain.Candidate{}
	}

	sorted := make([]domain.Candidate, len(candidates))
	copy(sorted, candidates)
	sortByScore(sorted)

	selected := make([]domain.Candidate, 0, min(maxDocuments, len(sorted)))
	taken := make([]bool, len(sorted))
	usedKeys := make(map[string]struct{}, len(sorted))

	for i, c := range sorted {
		if len(selected) >= maxDocuments {
			break
		}
		key := canonicalKey(c)
		if _, ok := usedKeys[key]; ok {
			continue
		}
		usedKeys[key] = struct{}{}
		taken[i] = true
		selected = append(selected, c)
	}

	for i, c := range sorted {
		if len(selected) >= maxDocuments {
			break
		}
		if taken[i] {
			continue
		}
		taken[i] = true
		selected = append(selected, c)
	}

	// Backfilled entries can outscore later unique ones.
	sortByScore(selected)
	return selected
}
