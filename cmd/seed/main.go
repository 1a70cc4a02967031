package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/regulation-hybrid-search/internal/bootstrap"
	"github.com/kirillkom/regulation-hybrid-search/internal/config"
	"github.com/kirillkom/regulation-hybrid-search/internal/infrastructure/corpus"
	"github.com/kirillkom/regulation-hybrid-search/internal/observability/logging"
)

func main() {
	fixturePath := flag.String("fixture", "testdata/regulations.yaml", "path to the YAML corpus fixture")
	flag.Parse()

	cfg := config.Load()
	logger := logging.NewJSONLogger("regsearch-seed", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, *fixturePath, logger))
}

func run(ctx context.Context, cfg config.Config, fixturePath string, logger *slog.Logger) int {
	fixture, err := corpus.LoadFixture(fixturePath)
	if err != nil {
		logger.Error("seed_fixture_load_failed", "path", fixturePath, "error", err)
		return 1
	}
	chunks := fixture.AllChunks(corpus.NewSplitter(cfg.SeedChunkSize, cfg.SeedOverlap))

	seeder, err := bootstrap.NewSeeder(ctx, cfg, logger)
	if err != nil {
		logger.Error("seed_bootstrap_failed", "error", err)
		return 1
	}
	defer seeder.Close()

	if _, err := seeder.Seeder.Seed(ctx, chunks, fixture.Relations); err != nil {
		logger.Error("seed_partially_failed", "error", err)
		return 1
	}
	return 0
}
