package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
)

const (
	maxExpansionKeywords = 20
	maxExpandedQueryTail = 10
	genericRelationship  = "connected"
)

// QueryExpander folds graph neighbors of the entities mentioned in a query
// back into the query text.
type QueryExpander struct {
	graph       ports.GraphNeighborFinder
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewQueryExpander(graph ports.GraphNeighborFinder, callTimeout time.Duration, logger *slog.Logger) *QueryExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExpander{
		graph:       graph,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// Expand never fails. When expansion cannot run the original query is
// returned unchanged with Success=false and the reason in ErrorMessage.
func (e *QueryExpander) Expand(ctx context.Context, query string, maxRelatedNodes int) (out domain.ExpandedQuery) {
	start := time.Now()
	out = domain.ExpandedQuery{
		OriginalText:   query,
		ExpandedText:   query,
		ExtractedNodes: []string{},
		RelatedNodes:   []domain.Neighbor{},
		Keywords:       []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			out = failedExpansion(query, fmt.Errorf("query expansion panic: %v", r))
		}
		out.ExecTimeMS = elapsedMS(start)
	}()

	if e == nil || e.graph == nil {
		return failedExpansion(query, errors.New("graph collaborator is not configured"))
	}

	terms := extractQueryTerms(query)
	out.ExtractedNodes = terms
	e.logger.Debug("query_terms_extracted", "query", query, "terms", terms)

	perTerm, _ := fetchNeighborsPerTerm(ctx, e.graph, terms, maxRelatedNodes, e.callTimeout, e.logger)
	if err := ctx.Err(); err != nil {
		return failedExpansion(query, fmt.Errorf("query expansion aborted: %w", err))
	}

	for _, neighbors := range perTerm {
		out.RelatedNodes = append(out.RelatedNodes, neighbors...)
	}
	out.Keywords = keywordsFromNeighbors(out.RelatedNodes)
	out.ExpandedText = buildExpandedQuery(query, out.Keywords)
	out.Success = true
	return out
}

func failedExpansion(query string, err error) domain.ExpandedQuery {
	return domain.ExpandedQuery{
		OriginalText:   query,
		ExpandedText:   query,
		ExtractedNodes: []string{},
		RelatedNodes:   []domain.Neighbor{},
		Keywords:       []string{},
		Success:        false,
		ErrorMessage:   err.Error(),
	}
}

// keywordsFromNeighbors unions neighbor ids, labels and non-generic
// relationship types in first-seen order, capped at 20.
func keywordsFromNeighbors(neighbors []domain.Neighbor) []string {
	out := make([]string, 0, maxExpansionKeywords)
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || len(out) >= maxExpansionKeywords {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, n := range neighbors {
		add(n.ID)
		add(n.Label)
		if n.RelationshipType != genericRelationship {
			add(n.RelationshipType)
		}
	}
	return out
}

func buildExpandedQuery(original string, keywords []string) string {
	if len(keywords) == 0 {
		return original
	}
	tail := keywords
	if len(tail) > maxExpandedQueryTail {
		tail = tail[:maxExpandedQueryTail]
	}
	return original + " " + strings.Join(tail, " ")
}

// fetchNeighborsPerTerm looks up every term concurrently. Results keep term
// order; a failed lookup leaves an empty slot. The returned count is the
// number of lookups that succeeded.
func fetchNeighborsPerTerm(
	ctx context.Context,
	graph ports.GraphNeighborFinder,
	terms []string,
	maxResults int,
	callTimeout time.Duration,
	logger *slog.Logger,
) ([][]domain.Neighbor, int) {
	results := make([][]domain.Neighbor, len(terms))
	okFlags := make([]bool, len(terms))

	var g errgroup.Group
	for i, term := range terms {
		g.Go(func() error {
			callCtx, cancel := withOptionalTimeout(ctx, callTimeout)
			defer cancel()

			neighbors, err := safeGetNeighbors(callCtx, graph, term, maxResults)
			if err != nil {
				logger.Warn("neighbor_lookup_failed", "term", term, "error", err)
				return nil
			}
			if maxResults > 0 && len(neighbors) > maxResults {
				neighbors = neighbors[:maxResults]
			}
			results[i] = neighbors
			okFlags[i] = true
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, ok := range okFlags {
		if ok {
			succeeded++
		}
	}
	return results, succeeded
}

func safeGetNeighbors(ctx context.Context, graph ports.GraphNeighborFinder, term string, maxResults int) (neighbors []domain.Neighbor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("neighbor lookup panic: %v", r)
		}
	}()
	return graph.GetNeighbors(ctx, term, maxResults)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
