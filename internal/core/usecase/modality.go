package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
)

const maxGraphQueryTerms = 10

var errAllNeighborLookupsFailed = errors.New("all neighbor lookups failed")

type ModalityQuery struct {
	Text            string
	Limit           int
	MaxRelatedNodes int
}

// ModalityResult is what one retrieval channel contributed. A non-nil Err
// means the channel failed; Candidates is then empty and ExecTimeMS zero.
type ModalityResult struct {
	Modality   domain.Modality
	Candidates []domain.Candidate
	ExecTimeMS float64
	Err        error
}

// ModalityAdapter wraps one retrieval backend behind a uniform contract.
type ModalityAdapter interface {
	Modality() domain.Modality
	Search(ctx context.Context, q ModalityQuery) ModalityResult
}

// TextModalityAdapter issues the query verbatim to the full-text store and
// tags the hits with its modality.
type TextModalityAdapter struct {
	modality    domain.Modality
	searcher    ports.FullTextSearcher
	callTimeout time.Duration
}

func NewVectorAdapter(searcher ports.FullTextSearcher, callTimeout time.Duration) *TextModalityAdapter {
	return &TextModalityAdapter{modality: domain.ModalityVector, searcher: searcher, callTimeout: callTimeout}
}

func NewKeywordAdapter(searcher ports.FullTextSearcher, callTimeout time.Duration) *TextModalityAdapter {
	return &TextModalityAdapter{modality: domain.ModalityKeyword, searcher: searcher, callTimeout: callTimeout}
}

func (a *TextModalityAdapter) Modality() domain.Modality { return a.modality }

func (a *TextModalityAdapter) Search(ctx context.Context, q ModalityQuery) ModalityResult {
	return runModality(ctx, a.modality, func(ctx context.Context) ([]domain.Candidate, error) {
		if a.searcher == nil {
			return nil, errors.New("full-text collaborator is not configured")
		}
		callCtx, cancel := withOptionalTimeout(ctx, a.callTimeout)
		defer cancel()

		hits, err := a.searcher.SearchText(callCtx, q.Text, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("full-text search: %w", err)
		}
		return candidatesFromHits(a.modality, hits, nil), nil
	})
}

// DenseVectorAdapter backs the vector modality with embedding similarity.
type DenseVectorAdapter struct {
	embedder    ports.Embedder
	searcher    ports.VectorSearcher
	callTimeout time.Duration
}

func NewDenseVectorAdapter(embedder ports.Embedder, searcher ports.VectorSearcher, callTimeout time.Duration) *DenseVectorAdapter {
	return &DenseVectorAdapter{embedder: embedder, searcher: searcher, callTimeout: callTimeout}
}

func (a *DenseVectorAdapter) Modality() domain.Modality { return domain.ModalityVector }

func (a *DenseVectorAdapter) Search(ctx context.Context, q ModalityQuery) ModalityResult {
	return runModality(ctx, domain.ModalityVector, func(ctx context.Context) ([]domain.Candidate, error) {
		if a.embedder == nil || a.searcher == nil {
			return nil, errors.New("dense vector backend is not configured")
		}
		callCtx, cancel := withOptionalTimeout(ctx, a.callTimeout)
		defer cancel()

		vector, err := a.embedder.EmbedQuery(callCtx, q.Text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		hits, err := a.searcher.SearchByVector(callCtx, vector, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		return candidatesFromHits(domain.ModalityVector, hits, nil), nil
	})
}

// GraphAdapter rewrites the query into the ids of graph neighbors of the
// entities it mentions and searches the full-text store with that.
type GraphAdapter struct {
	graph       ports.GraphNeighborFinder
	searcher    ports.FullTextSearcher
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewGraphAdapter(
	graph ports.GraphNeighborFinder,
	searcher ports.FullTextSearcher,
	callTimeout time.Duration,
	logger *slog.Logger,
) *GraphAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphAdapter{graph: graph, searcher: searcher, callTimeout: callTimeout, logger: logger}
}

func (a *GraphAdapter) Modality() domain.Modality { return domain.ModalityGraph }

func (a *GraphAdapter) Search(ctx context.Context, q ModalityQuery) ModalityResult {
	return runModality(ctx, domain.ModalityGraph, func(ctx context.Context) ([]domain.Candidate, error) {
		if a.graph == nil || a.searcher == nil {
			return nil, errors.New("graph collaborator is not configured")
		}

		terms := extractQueryTerms(q.Text)
		if len(terms) == 0 {
			return []domain.Candidate{}, nil
		}

		perTerm, succeeded := fetchNeighborsPerTerm(ctx, a.graph, terms, q.MaxRelatedNodes, a.callTimeout, a.logger)
		if succeeded == 0 {
			return nil, errAllNeighborLookupsFailed
		}

		neighborIDs := make([]string, 0, maxGraphQueryTerms)
		for _, neighbors := range perTerm {
			for _, n := range neighbors {
				if strings.TrimSpace(n.ID) == "" {
					continue
				}
				neighborIDs = append(neighborIDs, n.ID)
			}
		}
		a.logger.Debug("graph_neighbors_collected",
			"terms", len(terms),
			"terms_resolved", succeeded,
			"neighbors", len(neighborIDs),
		)
		if len(neighborIDs) == 0 {
			return []domain.Candidate{}, nil
		}

		queryIDs := neighborIDs
		if len(queryIDs) > maxGraphQueryTerms {
			queryIDs = queryIDs[:maxGraphQueryTerms]
		}

		callCtx, cancel := withOptionalTimeout(ctx, a.callTimeout)
		defer cancel()
		hits, err := a.searcher.SearchText(callCtx, strings.Join(queryIDs, " "), q.Limit)
		if err != nil {
			return nil, fmt.Errorf("full-text search with graph terms: %w", err)
		}
		return candidatesFromHits(domain.ModalityGraph, hits, neighborIDs), nil
	})
}

func runModality(
	ctx context.Context,
	modality domain.Modality,
	fn func(context.Context) ([]domain.Candidate, error),
) (res ModalityResult) {
	start := time.Now()
	res.Modality = modality
	defer func() {
		if r := recover(); r != nil {
			res = ModalityResult{Modality: modality, Candidates: []domain.Candidate{}, Err: fmt.Errorf("%s search panic: %v", modality, r)}
		}
	}()

	candidates, err := fn(ctx)
	if err != nil {
		return ModalityResult{Modality: modality, Candidates: []domain.Candidate{}, Err: err}
	}
	res.Candidates = candidates
	res.ExecTimeMS = elapsedMS(start)
	return res
}

func candidatesFromHits(modality domain.Modality, hits []domain.TextHit, graphKeywords []string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		out = append(out, domain.Candidate{
			ID:          string(modality) + "_" + hit.ID,
			Content:     hit.Text,
			SourceLabel: hit.Label,
			Modality:    modality,
			RawScore:    clampUnit(hit.Score),
			Metadata: domain.CandidateMetadata{
				PrefLabel:     hit.Label,
				SectionLabel:  hit.Label,
				ChunkID:       hit.ID,
				GraphKeywords: graphKeywords,
			},
		})
	}
	return out
}

// clampUnit caps collaborator scores into [0,1].
func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
