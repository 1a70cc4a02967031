package ports

import (
	"context"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// FullTextSearcher ranks regulation chunks against free text.
type FullTextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]domain.TextHit, error)
}

// VectorSearcher ranks regulation chunks by embedding similarity.
type VectorSearcher interface {
	SearchByVector(ctx context.Context, queryVector []float32, limit int) ([]domain.TextHit, error)
}

// GraphNeighborFinder returns first-hop neighbors of a node in both directions.
type GraphNeighborFinder interface {
	GetNeighbors(ctx context.Context, nodeID string, maxResults int) ([]domain.Neighbor, error)
}

// Embedder builds a vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HealthProber performs a cheap read-only reachability check.
type HealthProber interface {
	Ping(ctx context.Context) error
}

// SearchEventPublisher emits analytics events for completed searches.
type SearchEventPublisher interface {
	PublishSearchCompleted(ctx context.Context, event domain.SearchEvent) error
}

// RegulationIndexer writes chunks into the full-text store.
type RegulationIndexer interface {
	UpsertChunk(ctx context.Context, chunk domain.RegulationChunk) error
}

// RelationWriter writes edges into the graph store.
type RelationWriter interface {
	UpsertRelation(ctx context.Context, rel domain.Relation) error
}
