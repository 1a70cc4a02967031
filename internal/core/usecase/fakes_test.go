package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

type searchCall struct {
	query string
	limit int
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls []searchCall

	hits    []domain.TextHit
	byQuery map[string][]domain.TextHit
	errFor  map[string]error
	err     error
}

func (f *fakeSearcher) SearchText(_ context.Context, query string, limit int) ([]domain.TextHit, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query: query, limit: limit})
	f.mu.Unlock()

	if err, ok := f.errFor[query]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if hits, ok := f.byQuery[query]; ok {
		return hits, nil
	}
	return f.hits, nil
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.query)
	}
	return out
}

type fakeGraph struct {
	mu    sync.Mutex
	calls []string

	neighbors map[string][]domain.Neighbor
	errFor    map[string]error
	err       error
}

func (f *fakeGraph) GetNeighbors(_ context.Context, nodeID string, maxResults int) ([]domain.Neighbor, error) {
	f.mu.Lock()
	f.calls = append(f.calls, nodeID)
	f.mu.Unlock()

	if err, ok := f.errFor[nodeID]; ok {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := f.neighbors[nodeID]
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (f *fakeGraph) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProbe struct {
	err error
}

func (f fakeProbe) Ping(context.Context) error { return f.err }

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.SearchEvent
	err    error
}

func (f *fakePublisher) PublishSearchCompleted(_ context.Context, event domain.SearchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type observedModality struct {
	modality domain.Modality
	count    int
	err      error
}

type fakeObserver struct {
	mu         sync.Mutex
	modalities []observedModality
	outcomes   []string
}

func (f *fakeObserver) ObserveModality(modality domain.Modality, candidates int, _ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modalities = append(f.modalities, observedModality{modality: modality, count: candidates, err: err})
}

func (f *fakeObserver) ObserveSearch(outcome string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

type panickingAdapter struct {
	modality domain.Modality
}

func (p panickingAdapter) Modality() domain.Modality { return p.modality }

func (p panickingAdapter) Search(ctx context.Context, _ ModalityQuery) ModalityResult {
	return runModality(ctx, p.modality, func(context.Context) ([]domain.Candidate, error) {
		panic("adapter exploded")
	})
}

// regulationHits returns n hits with scores in the given order.
func regulationHits(scores ...float64) []domain.TextHit {
	out := make([]domain.TextHit, 0, len(scores))
	for i, s := range scores {
		out = append(out, domain.TextHit{
			ID:    fmt.Sprintf("chunk-%d", i+1),
			Text:  fmt.Sprintf("酒税法第%d条 販売業者は帳簿を備え付けなければならない。(%d)", i+1, i+1),
			Label: fmt.Sprintf("酒税法 第%d条", i+1),
			Score: s,
		})
	}
	return out
}
