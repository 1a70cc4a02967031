package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
)

const (
	MinMaxChunks       = 1
	MaxMaxChunks       = 20
	MinMaxRelatedNodes = 1
	MaxMaxRelatedNodes = 50
)

// SearchStage names a step of a hybrid search run.
type SearchStage string

const (
	StageIdle          SearchStage = "idle"
	StageExpanding     SearchStage = "expanding"
	StageSearching     SearchStage = "searching"
	StageFusing        SearchStage = "fusing"
	StageDeduplicating SearchStage = "deduplicating"
	StageRescoring     SearchStage = "rescoring"
	StageSelecting     SearchStage = "selecting"
	StageDone          SearchStage = "done"
	StageFailed        SearchStage = "failed"
)

// Search outcomes reported to observers.
const (
	OutcomeDone     = "done"
	OutcomeDegraded = "degraded"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// SearchObserver receives per-stage measurements. Implementations must be
// safe for concurrent use.
type SearchObserver interface {
	ObserveModality(modality domain.Modality, candidates int, duration time.Duration, err error)
	ObserveSearch(outcome string, finalCandidates int, duration time.Duration)
}

type HybridSearchOptions struct {
	AdapterLimit   int
	RequestTimeout time.Duration
	// PublishTimeout bounds delivery of one search event. Events are sent
	// after the result is returned.
	PublishTimeout time.Duration
	Scoring        ScoringConfig
}

func DefaultHybridSearchOptions() HybridSearchOptions {
	return HybridSearchOptions{
		AdapterLimit:   10,
		RequestTimeout: 15 * time.Second,
		PublishTimeout: 2 * time.Second,
		Scoring:        DefaultScoringConfig(),
	}
}

type HybridSearchDeps struct {
	Expander *QueryExpander
	Vector   ModalityAdapter
	Graph    ModalityAdapter
	Keyword  ModalityAdapter

	FullTextProbe ports.HealthProber
	GraphProbe    ports.HealthProber
	CacheProbe    ports.HealthProber
	VectorBackend string

	Publisher ports.SearchEventPublisher
	Observer  SearchObserver
	Logger    *slog.Logger

	// InitErr marks the service unavailable; every request short-circuits.
	InitErr error
}

// HybridSearchUseCase runs expansion, concurrent modality retrieval and the
// fusion pipeline for one request at a time. It holds no per-request state.
type HybridSearchUseCase struct {
	deps HybridSearchDeps
	opts HybridSearchOptions

	events sync.WaitGroup
}

func NewHybridSearchUseCase(deps HybridSearchDeps, opts HybridSearchOptions) *HybridSearchUseCase {
	def := DefaultHybridSearchOptions()
	if opts.AdapterLimit <= 0 {
		opts.AdapterLimit = def.AdapterLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = def.PublishTimeout
	}
	if opts.Scoring.FusedWeight == 0 && opts.Scoring.RelevanceWeight == 0 {
		opts.Scoring = def.Scoring
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &HybridSearchUseCase{deps: deps, opts: opts}
}

func validateFusionRequest(req domain.FusionRequest) error {
	if req.MaxChunks < MinMaxChunks || req.MaxChunks > MaxMaxChunks {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("max_chunks must be within %d..%d, got %d", MinMaxChunks, MaxMaxChunks, req.MaxChunks))
	}
	if req.MaxRelatedNodes < MinMaxRelatedNodes || req.MaxRelatedNodes > MaxMaxRelatedNodes {
		return domain.WrapError(domain.ErrInvalidInput, "validate request",
			fmt.Errorf("max_related_nodes must be within %d..%d, got %d", MinMaxRelatedNodes, MaxMaxRelatedNodes, req.MaxRelatedNodes))
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"vector_weight", req.VectorWeight},
		{"graph_weight", req.GraphWeight},
		{"keyword_weight", req.KeywordWeight},
	} {
		if math.IsNaN(w.value) || w.value < 0 || w.value > 1 {
			return domain.WrapError(domain.ErrInvalidInput, "validate request",
				fmt.Errorf("%s must be within 0..1, got %v", w.name, w.value))
		}
	}
	return nil
}

// Search returns an error only for malformed requests. Every other outcome,
// including total retrieval failure, is a well-formed result.
func (uc *HybridSearchUseCase) Search(ctx context.Context, req domain.FusionRequest) (*domain.FusionResult, error) {
	start := time.Now()
	if err := validateFusionRequest(req); err != nil {
		return nil, err
	}

	run := &searchRun{
		uc:    uc,
		req:   req,
		start: start,
		stage: StageIdle,
		result: &domain.FusionResult{
			SearchID:         uuid.NewString(),
			Query:            req.Query,
			FinalCandidates:  []domain.Candidate{},
			PerModalityStats: emptyModalityStats(),
		},
	}

	switch {
	case uc.deps.InitErr != nil:
		run.fail(fmt.Sprintf("service initialization failed: %v", uc.deps.InitErr))
	case strings.TrimSpace(req.Query) == "":
		run.fail("query must not be empty")
	default:
		reqCtx, cancel := context.WithTimeout(ctx, uc.opts.RequestTimeout)
		defer cancel()
		run.execute(reqCtx)
	}

	uc.finish(ctx, run)
	return run.result, nil
}

// ExpandQuery exposes the expansion stage on its own.
func (uc *HybridSearchUseCase) ExpandQuery(ctx context.Context, query string, maxRelatedNodes int) (*domain.ExpandedQuery, error) {
	if maxRelatedNodes < MinMaxRelatedNodes || maxRelatedNodes > MaxMaxRelatedNodes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate expansion request",
			fmt.Errorf("max_related_nodes must be within %d..%d, got %d", MinMaxRelatedNodes, MaxMaxRelatedNodes, maxRelatedNodes))
	}
	if uc.deps.InitErr != nil {
		out := failedExpansion(query, fmt.Errorf("service initialization failed: %w", uc.deps.InitErr))
		return &out, nil
	}
	if strings.TrimSpace(query) == "" {
		out := failedExpansion(query, errors.New("query must not be empty"))
		return &out, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, uc.opts.RequestTimeout)
	defer cancel()
	out := uc.deps.Expander.Expand(reqCtx, query, maxRelatedNodes)
	return &out, nil
}

// Health probes each collaborator once. Probes are read-only.
func (uc *HybridSearchUseCase) Health(ctx context.Context) domain.HealthStatus {
	status := domain.HealthStatus{
		Initialized:   uc.deps.InitErr == nil,
		VectorBackend: uc.deps.VectorBackend,
	}
	if uc.deps.InitErr != nil {
		status.Error = uc.deps.InitErr.Error()
	}

	probe := func(p ports.HealthProber) bool {
		if p == nil {
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return p.Ping(probeCtx) == nil
	}

	var g errgroup.Group
	g.Go(func() error { status.FullTextAvailable = probe(uc.deps.FullTextProbe); return nil })
	g.Go(func() error { status.GraphAvailable = probe(uc.deps.GraphProbe); return nil })
	g.Go(func() error { status.CacheAvailable = probe(uc.deps.CacheProbe); return nil })
	_ = g.Wait()
	return status
}

func (uc *HybridSearchUseCase) finish(ctx context.Context, run *searchRun) {
	res := run.result
	res.TotalExecTimeMS = elapsedMS(run.start)

	outcome := OutcomeDone
	switch {
	case !res.Success:
		outcome = OutcomeFailed
	case res.Fallback:
		outcome = OutcomeFallback
	case res.Degraded:
		outcome = OutcomeDegraded
	}

	logAttrs := []any{
		"search_id", res.SearchID,
		"stage", run.stage,
		"outcome", outcome,
		"final_candidates", len(res.FinalCandidates),
		"duration_ms", res.TotalExecTimeMS,
	}
	if res.Success {
		uc.deps.Logger.Info("hybrid_search_completed", logAttrs...)
	} else {
		uc.deps.Logger.Warn("hybrid_search_failed", append(logAttrs, "error", res.ErrorMessage)...)
	}

	if uc.deps.Observer != nil {
		uc.deps.Observer.ObserveSearch(outcome, len(res.FinalCandidates), time.Since(run.start))
	}
	if uc.deps.Publisher != nil {
		counts := make(map[domain.Modality]int, len(res.PerModalityStats))
		for m, s := range res.PerModalityStats {
			counts[m] = s.Count
		}
		event := domain.SearchEvent{
			SearchID:        res.SearchID,
			Query:           res.Query,
			Success:         res.Success,
			Degraded:        res.Degraded,
			Fallback:        res.Fallback,
			FinalCount:      len(res.FinalCandidates),
			ModalityCounts:  counts,
			TotalExecTimeMS: res.TotalExecTimeMS,
		}
		uc.publish(context.WithoutCancel(ctx), event)
	}
}

func (uc *HybridSearchUseCase) publish(ctx context.Context, event domain.SearchEvent) {
	uc.events.Add(1)
	go func() {
		defer uc.events.Done()
		ctx, cancel := context.WithTimeout(ctx, uc.opts.PublishTimeout)
		defer cancel()
		if err := uc.deps.Publisher.PublishSearchCompleted(ctx, event); err != nil {
			uc.deps.Logger.Warn("search_event_publish_failed", "search_id", event.SearchID, "error", err)
		}
	}()
}

// Close waits for in-flight search events. Call it before closing the
// publisher.
func (uc *HybridSearchUseCase) Close() {
	uc.events.Wait()
}

type searchRun struct {
	uc     *HybridSearchUseCase
	req    domain.FusionRequest
	start  time.Time
	stage  SearchStage
	result *domain.FusionResult

	expanded *domain.ExpandedQuery
	lists    map[domain.Modality][]domain.Candidate
	fused    []domain.Candidate
	coarse   []domain.Candidate
}

func (r *searchRun) transition(next SearchStage) {
	r.uc.deps.Logger.Debug("hybrid_search_stage", "search_id", r.result.SearchID, "from", r.stage, "to", next)
	r.stage = next
}

func (r *searchRun) fail(message string) {
	r.transition(StageFailed)
	r.result.Success = false
	r.result.ErrorMessage = message
	r.result.FinalCandidates = []domain.Candidate{}
}

func (r *searchRun) execute(ctx context.Context) {
	if r.req.EnableQueryExpansion {
		r.transition(StageExpanding)
		expanded := r.uc.deps.Expander.Expand(ctx, r.req.Query, r.req.MaxRelatedNodes)
		r.expanded = &expanded
		r.result.ExpandedQuery = r.expanded
		if !expanded.Success {
			r.uc.deps.Logger.Warn("query_expansion_failed", "search_id", r.result.SearchID, "error", expanded.ErrorMessage)
		}
	}

	r.transition(StageSearching)
	if err := r.searchAll(ctx); err != nil {
		r.fail(err.Error())
		return
	}

	if err := r.postProcess(); err != nil {
		r.uc.deps.Logger.Error("post_processing_failed",
			"search_id", r.result.SearchID,
			"stage", r.stage,
			"error", err,
		)
		r.result.FinalCandidates = trimCandidates(r.fallbackPool(), r.req.MaxChunks)
		r.result.Fallback = true
	}

	r.transition(StageDone)
	r.result.Success = true
}

// searchAll fans out to the three modalities and joins them. It errors only
// when every modality failed.
func (r *searchRun) searchAll(ctx context.Context) error {
	keywordQuery := r.req.Query
	if r.expanded != nil && r.expanded.Success {
		keywordQuery = r.expanded.ExpandedText
	}

	calls := []struct {
		adapter ModalityAdapter
		query   string
	}{
		{r.uc.deps.Vector, r.req.Query},
		{r.uc.deps.Graph, r.req.Query},
		{r.uc.deps.Keyword, keywordQuery},
	}

	results := make([]ModalityResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			modality := domain.Modalities[i]
			if call.adapter == nil {
				results[i] = ModalityResult{Modality: modality, Err: fmt.Errorf("%s adapter is not configured", modality)}
				return nil
			}
			results[i] = call.adapter.Search(ctx, ModalityQuery{
				Text:            call.query,
				Limit:           r.uc.opts.AdapterLimit,
				MaxRelatedNodes: r.req.MaxRelatedNodes,
			})
			results[i].Modality = modality
			return nil
		})
	}
	_ = g.Wait()

	r.lists = make(map[domain.Modality][]domain.Candidate, len(results))
	failures := make([]string, 0, len(results))
	for _, res := range results {
		stats := domain.ModalityStats{}
		duration := time.Duration(res.ExecTimeMS * float64(time.Millisecond))
		if res.Err != nil {
			stats.Error = res.Err.Error()
			failures = append(failures, fmt.Sprintf("%s: %v", res.Modality, res.Err))
			r.uc.deps.Logger.Warn("modality_search_failed",
				"search_id", r.result.SearchID,
				"modality", res.Modality,
				"error", res.Err,
			)
			duration = 0
		} else {
			stats.Count = len(res.Candidates)
			stats.ExecTimeMS = res.ExecTimeMS
			r.lists[res.Modality] = res.Candidates
		}
		r.result.PerModalityStats[res.Modality] = stats
		if r.uc.deps.Observer != nil {
			r.uc.deps.Observer.ObserveModality(res.Modality, stats.Count, duration, res.Err)
		}
	}

	if len(failures) == len(results) {
		return fmt.Errorf("all retrieval modalities failed: %s", strings.Join(failures, "; "))
	}
	r.result.Degraded = len(failures) > 0
	return nil
}

// postProcess runs the fusion pipeline. A returned error means the caller
// should fall back to naive truncation of the best list produced so far.
func (r *searchRun) postProcess() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v", r.stage, p)
		}
	}()

	r.transition(StageFusing)
	r.fused = fuseWeighted(r.lists, r.req.Weight)

	r.transition(StageDeduplicating)
	r.coarse = dedupeByContentPrefix(r.fused)

	r.transition(StageRescoring)
	rescored, err := rescoreByRelevance(r.coarse, extractQueryTerms(r.req.Query), r.uc.opts.Scoring)
	if err != nil {
		return err
	}

	r.transition(StageSelecting)
	r.result.FinalCandidates = selectDiverse(rescored, r.req.MaxChunks)
	return nil
}

func (r *searchRun) fallbackPool() []domain.Candidate {
	switch {
	case r.coarse != nil:
		return r.coarse
	case r.fused != nil:
		return dedupeByContentPrefix(r.fused)
	default:
		naive := make([]domain.Candidate, 0)
		for _, m := range domain.Modalities {
			for _, c := range r.lists[m] {
				c.WeightedScore = clampUnit(c.RawScore) * nonNegative(r.req.Weight(m))
				naive = append(naive, c)
			}
		}
		sortByScore(naive)
		return dedupeByContentPrefix(naive)
	}
}

func emptyModalityStats() map[domain.Modality]domain.ModalityStats {
	out := make(map[domain.Modality]domain.ModalityStats, len(domain.Modalities))
	for _, m := range domain.Modalities {
		out[m] = domain.ModalityStats{}
	}
	return out
}
