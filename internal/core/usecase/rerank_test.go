package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

func TestRescoreByRelevanceBlendsFusedAndRelevance(t *testing.T) {
	in := []domain.Candidate{{
		ID:            "vector_chunk-1",
		Content:       "酒税法第1条 販売業者は帳簿を備え付けなければならない。",
		WeightedScore: 0.36,
		Metadata:      domain.CandidateMetadata{PrefLabel: "酒税法 第1条", SectionLabel: "酒税法 第1条"},
	}}

	out, err := rescoreByRelevance(in, []string{"酒税法", "販売業者"}, DefaultScoringConfig())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	// relevance = 0.5*1 + 0.3*0.5 + 0.2*1.0 = 0.85
	want := 0.7*0.36 + 0.3*0.85
	if !approxEqual(out[0].WeightedScore, want) {
		t.Fatalf("expected %v, got %v", want, out[0].WeightedScore)
	}
	if in[0].WeightedScore != 0.36 {
		t.Fatalf("input slice must not be modified")
	}
}

func TestRescoreByRelevanceChangesOrder(t *testing.T) {
	in := []domain.Candidate{
		{ID: "a", Content: "無関係な文書", WeightedScore: 0.40},
		{ID: "b", Content: "ビールの製造免許について", WeightedScore: 0.35, Metadata: domain.CandidateMetadata{PrefLabel: "ビール製造免許", SectionLabel: "第3条"}},
	}

	out, err := rescoreByRelevance(in, []string{"ビール", "製造免許"}, DefaultScoringConfig())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	sortByScore(out)
	if out[0].ID != "b" {
		t.Fatalf("expected relevant candidate first after rescoring, got %s", out[0].ID)
	}
}

func TestRescoreByRelevanceWithoutKeywords(t *testing.T) {
	in := []domain.Candidate{{ID: "a", Content: "text", WeightedScore: 0.5}}

	out, err := rescoreByRelevance(in, nil, DefaultScoringConfig())
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	// overlap and name are zero; unknown section contributes 0.2*0.5.
	want := 0.7*0.5 + 0.3*0.1
	if !approxEqual(out[0].WeightedScore, want) {
		t.Fatalf("expected %v, got %v", want, out[0].WeightedScore)
	}
}

func TestRescoreByRelevanceRejectsNegativeWeights(t *testing.T) {
	cfg := DefaultScoringConfig()
	cfg.RelevanceWeight = -0.3
	if _, err := rescoreByRelevance([]domain.Candidate{{ID: "a"}}, nil, cfg); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg = DefaultScoringConfig()
	cfg.SectionTiers = []SectionTier{{MaxNumber: 50, Score: 1}, {MaxNumber: 10, Score: 0.5}}
	if _, err := rescoreByRelevance([]domain.Candidate{{ID: "a"}}, nil, cfg); err == nil {
		t.Fatalf("expected tier ordering error")
	}

	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		cfg = DefaultScoringConfig()
		cfg.FusedWeight = bad
		if _, err := rescoreByRelevance([]domain.Candidate{{ID: "a"}}, nil, cfg); err == nil {
			t.Fatalf("expected validation error for fused weight %v", bad)
		}
	}
}

func TestSectionImportanceTiers(t *testing.T) {
	cfg := DefaultScoringConfig()
	cases := []struct {
		label string
		want  float64
	}{
		{"第3条", 1.0},
		{"第10条", 1.0},
		{"第11条", 0.8},
		{"第50条", 0.8},
		{"第99条", 0.6},
		{"第101条", 0.4},
		{"第１２条", 0.8},
		{"附則", 0.5},
		{"", 0.5},
		{"第99999999999999999999999条", 0.4},
	}
	for _, tc := range cases {
		if got := sectionImportance(tc.label, cfg); got != tc.want {
			t.Fatalf("sectionImportance(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
}

func TestKeywordOverlapRatio(t *testing.T) {
	if got := keywordOverlapRatio("酒税法 販売業者", []string{"酒税法", "製造", "販売業者", "免許"}); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := keywordOverlapRatio("anything", nil); got != 0 {
		t.Fatalf("expected 0 for empty keyword set, got %v", got)
	}
}
