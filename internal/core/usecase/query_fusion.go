package usecase

import (
	"sort"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

const contentPrefixRunes = 100

// fuseWeighted scales every candidate by its modality weight and returns the
// concatenation in modality order, sorted by weighted score. Equal scores keep
// discovery order.
func fuseWeighted(lists map[domain.Modality][]domain.Candidate, weights func(domain.Modality) float64) []domain.Candidate {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	out := make([]domain.Candidate, 0, total)
	for _, modality := range domain.Modalities {
		for _, c := range lists[modality] {
			c.RawScore = clampUnit(c.RawScore)
			c.WeightedScore = c.RawScore * nonNegative(weights(modality))
			out = append(out, c)
		}
	}

	sortByScore(out)
	return out
}

// dedupeByContentPrefix drops candidates whose leading content repeats an
// earlier candidate's, regardless of modality. First seen wins.
func dedupeByContentPrefix(candidates []domain.Candidate) []domain.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := contentPrefixKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func contentPrefixKey(c domain.Candidate) string {
	if c.Content == "" {
		return "id:" + c.ID
	}
	runes := []rune(c.Content)
	if len(runes) > contentPrefixRunes {
		runes = runes[:contentPrefixRunes]
	}
	return "content:" + string(runes)
}

// canonicalKey identifies the regulation/section a candidate refers to.
func canonicalKey(c domain.Candidate) string {
	pref := c.Metadata.PrefLabel
	section := c.Metadata.SectionLabel
	switch {
	case pref != "" && section != "":
		return pref + "_" + section
	case pref != "":
		return pref
	default:
		return c.ID
	}
}

func sortByScore(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].WeightedScore > candidates[j].WeightedScore
	})
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
