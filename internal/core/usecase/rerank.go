package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// ScoringConfig holds the hand-tuned blend constants for relevance re-scoring.
type ScoringConfig struct {
	FusedWeight     float64
	RelevanceWeight float64

	KeywordOverlapWeight float64
	RegulationNameWeight float64
	SectionWeight        float64
	RegulationNameMatch  float64

	SectionTiers         []SectionTier
	SectionOverflowScore float64
	SectionUnknownScore  float64
}

// SectionTier assigns Score to sections numbered at most MaxNumber.
type SectionTier struct {
	MaxNumber int
	Score     float64
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		FusedWeight:     0.7,
		RelevanceWeight: 0.3,

		KeywordOverlapWeight: 0.5,
		RegulationNameWeight: 0.3,
		SectionWeight:        0.2,
		RegulationNameMatch:  0.5,

		SectionTiers: []SectionTier{
			{MaxNumber: 10, Score: 1.0},
			{MaxNumber: 50, Score: 0.8},
			{MaxNumber: 100, Score: 0.6},
		},
		SectionOverflowScore: 0.4,
		SectionUnknownScore:  0.5,
	}
}

func (c ScoringConfig) validate() error {
	for name, v := range map[string]float64{
		"fused weight":           c.FusedWeight,
		"relevance weight":       c.RelevanceWeight,
		"keyword overlap weight": c.KeywordOverlapWeight,
		"regulation name weight": c.RegulationNameWeight,
		"section weight":         c.SectionWeight,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scoring: %s must be a non-negative finite number, got %v", name, v)
		}
	}
	for i := 1; i < len(c.SectionTiers); i++ {
		if c.SectionTiers[i].MaxNumber <= c.SectionTiers[i-1].MaxNumber {
			return fmt.Errorf("scoring: section tiers must be strictly ascending")
		}
	}
	return nil
}

// rescoreByRelevance returns a copy of candidates whose WeightedScore blends
// the fused score with query-keyword overlap and section heuristics.
func rescoreByRelevance(candidates []domain.Candidate, queryKeywords []string, cfg ScoringConfig) ([]domain.Candidate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(queryKeywords))
	for _, kw := range queryKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	out := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		relevance := documentRelevance(c, lowered, cfg)
		c.WeightedScore = cfg.FusedWeight*c.WeightedScore + cfg.RelevanceWeight*relevance
		out[i] = c
	}
	return out, nil
}

func documentRelevance(c domain.Candidate, keywords []string, cfg ScoringConfig) float64 {
	overlap := keywordOverlapRatio(strings.ToLower(c.Content), keywords)

	nameScore := 0.0
	pref := strings.ToLower(c.Metadata.PrefLabel)
	for _, kw := range keywords {
		if pref != "" && strings.Contains(pref, kw) {
			nameScore = cfg.RegulationNameMatch
			break
		}
	}

	section := sectionImportance(c.Metadata.SectionLabel, cfg)
	return cfg.KeywordOverlapWeight*overlap + cfg.RegulationNameWeight*nameScore + cfg.SectionWeight*section
}

func keywordOverlapRatio(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// sectionImportance ranks low-numbered sections higher using the first
// integer in the label.
func sectionImportance(label string, cfg ScoringConfig) float64 {
	n, ok := firstInteger(label)
	if !ok {
		return cfg.SectionUnknownScore
	}
	for _, tier := range cfg.SectionTiers {
		if n <= tier.MaxNumber {
			return tier.Score
		}
	}
	return cfg.SectionOverflowScore
}

// firstInteger parses the first run of ASCII or full-width digits in s.
// Runs that overflow saturate at math.MaxInt.
func firstInteger(s string) (int, bool) {
	n := 0
	found := false
	for _, r := range s {
		d, isDigit := digitValue(r)
		if !isDigit {
			if found {
				break
			}
			continue
		}
		found = true
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
			continue
		}
		n = n*10 + d
	}
	return n, found
}

func digitValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= '０' && r <= '９':
		return int(r - '０'), true
	default:
		return 0, false
	}
}
