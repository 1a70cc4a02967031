package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
)

const defaultSeedConcurrency = 4

type SeedStats struct {
	Chunks    int
	Relations int
	Failed    int
}

// CorpusSeeder writes regulation chunks and graph relations into the stores
// the search engine reads from. Items are independent; one failure does not
// stop the rest.
type CorpusSeeder struct {
	indexer     ports.RegulationIndexer
	relations   ports.RelationWriter
	embedder    ports.Embedder
	concurrency int
	logger      *slog.Logger
}

// NewCorpusSeeder accepts a nil embedder when the dense vector backend is off.
func NewCorpusSeeder(
	indexer ports.RegulationIndexer,
	relations ports.RelationWriter,
	embedder ports.Embedder,
	concurrency int,
	logger *slog.Logger,
) *CorpusSeeder {
	if concurrency <= 0 {
		concurrency = defaultSeedConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusSeeder{
		indexer:     indexer,
		relations:   relations,
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (s *CorpusSeeder) Seed(ctx context.Context, chunks []domain.RegulationChunk, relations []domain.Relation) (SeedStats, error) {
	var (
		mu    sync.Mutex
		stats SeedStats
		errs  []error
	)
	record := func(kind string, id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("%s %s: %w", kind, id, err))
			s.logger.Warn("seed_item_failed", "kind", kind, "id", id, "error", err)
			return
		}
		if kind == "chunk" {
			stats.Chunks++
		} else {
			stats.Relations++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	if s.indexer != nil {
		for _, chunk := range chunks {
			g.Go(func() error {
				record("chunk", chunk.ID, s.indexChunk(gctx, chunk))
				return nil
			})
		}
	}
	if s.relations != nil {
		for _, rel := range relations {
			g.Go(func() error {
				record("relation", rel.SourceID+"->"+rel.TargetID, s.relations.UpsertRelation(gctx, rel))
				return nil
			})
		}
	}
	_ = g.Wait()

	s.logger.Info("seed_completed",
		"chunks", stats.Chunks,
		"relations", stats.Relations,
		"failed", stats.Failed,
	)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(errs...)
}

func (s *CorpusSeeder) indexChunk(ctx context.Context, chunk domain.RegulationChunk) error {
	if s.embedder != nil && len(chunk.Embedding) == 0 {
		vector, err := s.embedder.EmbedQuery(ctx, chunk.PrefLabel+"\n"+chunk.Text)
		if err != nil {
			return fmt.Errorf("embed chunk: %w", err)
		}
		chunk.Embedding = vector
	}
	return s.indexer.UpsertChunk(ctx, chunk)
}
