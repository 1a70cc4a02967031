package ports

import (
	"context"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// HybridSearchService is the inbound contract for fused multi-modality retrieval.
type HybridSearchService interface {
	Search(ctx context.Context, req domain.FusionRequest) (*domain.FusionResult, error)
	ExpandQuery(ctx context.Context, query string, maxRelatedNodes int) (*domain.ExpandedQuery, error)
}

// HealthReporter is the inbound read model for collaborator reachability.
type HealthReporter interface {
	Health(ctx context.Context) domain.HealthStatus
}
