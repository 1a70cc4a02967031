package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/regulation-hybrid-search/internal/config"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/usecase"
	rediscache "github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/cache/redis"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/resilience"
	"github.com/kirillkom/regulation-hybrid-search/internal/observability/metrics"
)

const apiServiceName = "regsearch-api"

type App struct {
	Config config.Config
	Logger *slog.Logger

	HTTPMetrics *metrics.HTTPServerMetrics
	Search      *usecase.HybridSearchUseCase

	closeFns []func()
}

// New wires the search engine. Collaborator failures do not abort startup:
// the engine is built with InitErr set and answers every request as
// unavailable. Optional collaborators (cache, events) are skipped on failure.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:      cfg,
		Logger:      logger,
		HTTPMetrics: metrics.NewHTTPServerMetrics(apiServiceName),
	}
	searchMetrics := metrics.NewSearchMetrics(apiServiceName, app.HTTPMetrics.Registerer())
	executor := resilience.NewExecutor(
		resilienceConfig(cfg),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(searchMetrics.ObserveBreakerState),
	)

	deps := usecase.HybridSearchDeps{
		VectorBackend: cfg.VectorBackend,
		Observer:      searchMetrics,
		Logger:        logger,
	}

	repo, initErr := app.openRepository(ctx, cfg, executor)
	if initErr == nil {
		deps.FullTextProbe = repo
	}

	var graph ports.GraphNeighborFinder
	graphClient, err := neo4j.New(ctx, neo4j.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}, neo4j.Options{ConnectTimeout: cfg.ConnectTimeout, ResilienceExecutor: executor})
	if err != nil {
		initErr = errors.Join(initErr, fmt.Errorf("init graph store: %w", err))
	} else {
		app.onClose(func() { _ = graphClient.Close(context.Background()) })
		deps.GraphProbe = graphClient
		graph = graphClient
	}

	if graph != nil && cfg.RedisURL != "" {
		cacheOpts := rediscache.Options{URL: cfg.RedisURL, TTL: cfg.RedisTTL, ConnectTimeout: cfg.ConnectTimeout, Logger: logger}
		client, err := rediscache.Connect(ctx, cacheOpts)
		if err != nil {
			logger.Warn("neighbor_cache_disabled", "error", err)
		} else {
			cache := rediscache.NewNeighborCache(graph, client, cacheOpts)
			app.onClose(func() { _ = cache.Close() })
			deps.CacheProbe = cache
			graph = cache
		}
	}

	if cfg.NATSURL != "" {
		publisher, err := nats.NewEventPublisher(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ConnectTimeout:     cfg.ConnectTimeout,
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			logger.Warn("search_events_disabled", "error", err)
		} else {
			app.onClose(publisher.Close)
			deps.Publisher = publisher
		}
	}

	if initErr != nil {
		logger.Error("hybrid_search_init_failed", "error", initErr)
		deps.InitErr = initErr
	} else {
		deps.Expander = usecase.NewQueryExpander(graph, cfg.CollaboratorTimeout, logger)
		deps.Graph = usecase.NewGraphAdapter(graph, repo, cfg.CollaboratorTimeout, logger)
		deps.Keyword = usecase.NewKeywordAdapter(repo, cfg.CollaboratorTimeout)
		deps.Vector = usecase.NewVectorAdapter(repo, cfg.CollaboratorTimeout)
		if cfg.VectorBackend == config.VectorBackendPGVector {
			deps.Vector = usecase.NewDenseVectorAdapter(newEmbedder(cfg, executor), repo, cfg.CollaboratorTimeout)
		}
	}

	app.Search = usecase.NewHybridSearchUseCase(deps, usecase.HybridSearchOptions{
		AdapterLimit:   cfg.AdapterLimit,
		RequestTimeout: cfg.RequestTimeout,
		PublishTimeout: cfg.EventPublishTimeout,
		Scoring:        scoringConfig(cfg),
	})
	app.onClose(app.Search.Close)
	logger.Info("hybrid_search_ready",
		"initialized", deps.InitErr == nil,
		"vector_backend", cfg.VectorBackend,
		"neighbor_cache", deps.CacheProbe != nil,
		"search_events", deps.Publisher != nil,
	)
	return app
}

func (a *App) openRepository(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*postgres.RegulationRepository, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("init full-text store: %w", err)
	}
	a.onClose(func() { _ = db.Close() })

	repo := postgres.NewRegulationRepository(db, postgres.Options{ResilienceExecutor: executor})
	if err := repo.EnsureSchema(ctx, embeddingDims(cfg)); err != nil {
		return nil, fmt.Errorf("init full-text store: %w", err)
	}
	return repo, nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases collaborators in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

// Seeder bundles the stores written by the corpus loader.
type Seeder struct {
	Seeder *usecase.CorpusSeeder

	db    *sql.DB
	graph *neo4j.Client
}

// NewSeeder connects to both stores and fails fast; seeding needs all of them.
func NewSeeder(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Seeder, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg), resilience.WithLogger(logger))

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewRegulationRepository(db, postgres.Options{ResilienceExecutor: executor})
	if err := repo.EnsureSchema(ctx, embeddingDims(cfg)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	graphClient, err := neo4j.New(ctx, neo4j.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	}, neo4j.Options{ConnectTimeout: cfg.ConnectTimeout, ResilienceExecutor: executor})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := graphClient.EnsureSchema(ctx); err != nil {
		_ = graphClient.Close(context.Background())
		_ = db.Close()
		return nil, fmt.Errorf("ensure graph schema: %w", err)
	}

	var embedder ports.Embedder
	if cfg.VectorBackend == config.VectorBackendPGVector {
		embedder = newEmbedder(cfg, executor)
	}

	return &Seeder{
		Seeder: usecase.NewCorpusSeeder(repo, graphClient, embedder, cfg.SeedConcurrency, logger),
		db:     db,
		graph:  graphClient,
	}, nil
}

func (s *Seeder) Close() {
	_ = s.graph.Close(context.Background())
	_ = s.db.Close()
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) *ollama.Embedder {
	client := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            cfg.CollaboratorTimeout,
		ResilienceExecutor: executor,
	})
	return ollama.NewEmbedder(client)
}

func embeddingDims(cfg config.Config) int {
	if cfg.VectorBackend != config.VectorBackendPGVector {
		return 0
	}
	return cfg.EmbeddingDims
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}

func scoringConfig(cfg config.Config) usecase.ScoringConfig {
	out := usecase.DefaultScoringConfig()
	out.FusedWeight = cfg.FusedWeight
	out.RelevanceWeight = cfg.RelevanceWeight
	out.KeywordOverlapWeight = cfg.KeywordOverlapWeight
	out.RegulationNameWeight = cfg.RegulationNameWeight
	out.SectionWeight = cfg.SectionWeight
	return out
}
