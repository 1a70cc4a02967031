package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

func TestTextModalityAdapterTagsAndClampsHits(t *testing.T) {
	searcher := &fakeSearcher{hits: []domain.TextHit{
		{ID: "c1", Text: "第一条", Label: "酒税法 第1条", Score: 7.5},
		{ID: "c2", Text: "第二条", Label: "酒税法 第2条", Score: 0.4},
		{ID: "c3", Text: "第三条", Label: "酒税法 第3条", Score: -1},
	}}

	res := NewKeywordAdapter(searcher, 0).Search(context.Background(), ModalityQuery{Text: "酒税", Limit: 10})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(res.Candidates))
	}
	first := res.Candidates[0]
	if first.ID != "keyword_c1" || first.Modality != domain.ModalityKeyword {
		t.Fatalf("unexpected tagging %+v", first)
	}
	if first.RawScore != 1 {
		t.Fatalf("expected score capped to 1, got %v", first.RawScore)
	}
	if res.Candidates[2].RawScore != 0 {
		t.Fatalf("expected negative score clamped to 0, got %v", res.Candidates[2].RawScore)
	}
	if first.Metadata.PrefLabel != "酒税法 第1条" || first.Metadata.SectionLabel != "酒税法 第1条" || first.Metadata.ChunkID != "c1" {
		t.Fatalf("unexpected metadata %+v", first.Metadata)
	}
	if calls := searcher.queries(); len(calls) != 1 || calls[0] != "酒税" {
		t.Fatalf("expected verbatim query, got %v", calls)
	}
}

func TestVectorAndKeywordAdaptersDifferOnlyByTag(t *testing.T) {
	searcher := &fakeSearcher{hits: regulationHits(0.5)}

	vec := NewVectorAdapter(searcher, 0).Search(context.Background(), ModalityQuery{Text: "q", Limit: 5})
	kw := NewKeywordAdapter(searcher, 0).Search(context.Background(), ModalityQuery{Text: "q", Limit: 5})
	if vec.Candidates[0].Content != kw.Candidates[0].Content || vec.Candidates[0].RawScore != kw.Candidates[0].RawScore {
		t.Fatalf("expected identical payloads")
	}
	if vec.Candidates[0].Modality != domain.ModalityVector || kw.Candidates[0].Modality != domain.ModalityKeyword {
		t.Fatalf("unexpected modality tags")
	}
}

func TestTextModalityAdapterFailureReturnsEmptyResult(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index offline")}

	res := NewVectorAdapter(searcher, 0).Search(context.Background(), ModalityQuery{Text: "q", Limit: 5})
	if res.Err == nil {
		t.Fatalf("expected error")
	}
	if len(res.Candidates) != 0 || res.ExecTimeMS != 0 {
		t.Fatalf("expected empty result with zero timing, got %+v", res)
	}
}

func TestGraphAdapterSearchesWithNeighborIDs(t *testing.T) {
	graph := &fakeGraph{neighbors: map[string][]domain.Neighbor{
		"酒税":   {{ID: "酒類", Label: "Concept"}, {ID: "税率", Label: "Concept"}},
		"販売業者": {{ID: "販売業免許", Label: "License"}},
	}}
	searcher := &fakeSearcher{hits: regulationHits(0.8)}

	res := NewGraphAdapter(graph, searcher, 0, nil).Search(context.Background(), ModalityQuery{
		Text:            "酒税 販売業者",
		Limit:           10,
		MaxRelatedNodes: 10,
	})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	calls := searcher.queries()
	if len(calls) != 1 || calls[0] != "酒類 税率 販売業免許" {
		t.Fatalf("expected augmented query, got %v", calls)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Modality != domain.ModalityGraph || res.Candidates[0].ID != "graph_chunk-1" {
		t.Fatalf("unexpected candidates %+v", res.Candidates)
	}
	if len(res.Candidates[0].Metadata.GraphKeywords) != 3 {
		t.Fatalf("expected graph keywords metadata, got %v", res.Candidates[0].Metadata.GraphKeywords)
	}
}

func TestGraphAdapterCapsAugmentedQueryAtTenIDs(t *testing.T) {
	neighbors := make([]domain.Neighbor, 0, 12)
	for i := 0; i < 12; i++ {
		neighbors = append(neighbors, domain.Neighbor{ID: string(rune('A' + i))})
	}
	graph := &fakeGraph{neighbors: map[string][]domain.Neighbor{"ビール": neighbors}}
	searcher := &fakeSearcher{hits: regulationHits(0.8)}

	NewGraphAdapter(graph, searcher, 0, nil).Search(context.Background(), ModalityQuery{Text: "ビール", Limit: 10, MaxRelatedNodes: 50})
	calls := searcher.queries()
	if len(calls) != 1 || calls[0] != "A B C D E F G H I J" {
		t.Fatalf("expected ten neighbor ids, got %v", calls)
	}
}

func TestGraphAdapterWithoutNeighborsSkipsSearch(t *testing.T) {
	graph := &fakeGraph{}
	searcher := &fakeSearcher{hits: regulationHits(0.8)}

	res := NewGraphAdapter(graph, searcher, 0, nil).Search(context.Background(), ModalityQuery{Text: "ビール", Limit: 10, MaxRelatedNodes: 10})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(res.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(res.Candidates))
	}
	if len(searcher.queries()) != 0 {
		t.Fatalf("full-text store must not be called without graph terms")
	}
}

func TestGraphAdapterFailsWhenEveryLookupFails(t *testing.T) {
	graph := &fakeGraph{err: errors.New("graph down")}
	searcher := &fakeSearcher{hits: regulationHits(0.8)}

	res := NewGraphAdapter(graph, searcher, 0, nil).Search(context.Background(), ModalityQuery{Text: "ビール 酒類", Limit: 10, MaxRelatedNodes: 10})
	if !errors.Is(res.Err, errAllNeighborLookupsFailed) {
		t.Fatalf("expected all-lookups-failed error, got %v", res.Err)
	}
}

func TestRunModalityRecoversPanics(t *testing.T) {
	res := panickingAdapter{modality: domain.ModalityGraph}.Search(context.Background(), ModalityQuery{})
	if res.Err == nil {
		t.Fatalf("expected panic converted to error")
	}
	if res.Modality != domain.ModalityGraph || len(res.Candidates) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeVectorSearcher struct {
	got  []float32
	hits []domain.TextHit
}

func (f *fakeVectorSearcher) SearchByVector(_ context.Context, v []float32, _ int) ([]domain.TextHit, error) {
	f.got = v
	return f.hits, nil
}

func TestDenseVectorAdapterEmbedsThenSearches(t *testing.T) {
	vs := &fakeVectorSearcher{hits: regulationHits(0.93)}
	res := NewDenseVectorAdapter(fakeEmbedder{vector: []float32{0.1, 0.2}}, vs, 0).
		Search(context.Background(), ModalityQuery{Text: "q", Limit: 3})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if len(vs.got) != 2 {
		t.Fatalf("expected query vector forwarded, got %v", vs.got)
	}
	if res.Candidates[0].Modality != domain.ModalityVector {
		t.Fatalf("expected vector tag")
	}
}

func TestDenseVectorAdapterEmbeddingFailure(t *testing.T) {
	res := NewDenseVectorAdapter(fakeEmbedder{err: errors.New("ollama down")}, &fakeVectorSearcher{}, 0).
		Search(context.Background(), ModalityQuery{Text: "q", Limit: 3})
	if res.Err == nil || len(res.Candidates) != 0 {
		t.Fatalf("expected failure result, got %+v", res)
	}
}
