package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"VECTOR_BACKEND", "REDIS_URL", "NATS_URL", "REDIS_TTL",
		"REQUEST_TIMEOUT", "ADAPTER_LIMIT", "SCORING_FUSED_WEIGHT",
		"DEFAULT_MAX_CHUNKS", "API_RATE_LIMIT_RPS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.VectorBackend != VectorBackendFullText {
		t.Fatalf("expected default vector backend %q, got %q", VectorBackendFullText, cfg.VectorBackend)
	}
	if cfg.RedisURL != "" || cfg.NATSURL != "" {
		t.Fatalf("expected optional collaborators disabled by default, got redis=%q nats=%q", cfg.RedisURL, cfg.NATSURL)
	}
	if cfg.RedisTTL != time.Hour {
		t.Fatalf("expected default redis ttl 1h, got %s", cfg.RedisTTL)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("expected default request timeout 15s, got %s", cfg.RequestTimeout)
	}
	if cfg.AdapterLimit != 10 {
		t.Fatalf("expected default adapter limit 10, got %d", cfg.AdapterLimit)
	}
	if cfg.FusedWeight != 0.7 {
		t.Fatalf("expected default fused weight 0.7, got %v", cfg.FusedWeight)
	}
	if cfg.DefaultMaxChunks != 5 {
		t.Fatalf("expected default max chunks 5, got %d", cfg.DefaultMaxChunks)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rate limit 20, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "pgvector")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("SCORING_SECTION_WEIGHT", "0.25")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.VectorBackend != VectorBackendPGVector {
		t.Fatalf("expected vector backend override, got %q", cfg.VectorBackend)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("expected redis url override, got %q", cfg.RedisURL)
	}
	if cfg.RedisTTL != 90*time.Second {
		t.Fatalf("expected redis ttl 90s, got %s", cfg.RedisTTL)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected request timeout 3s, got %s", cfg.RequestTimeout)
	}
	if cfg.SectionWeight != 0.25 {
		t.Fatalf("expected section weight 0.25, got %v", cfg.SectionWeight)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "faiss")
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("ADAPTER_LIMIT", "ten")
	t.Setenv("SCORING_FUSED_WEIGHT", "high")
	t.Setenv("REDIS_TTL", "-5m")
	t.Setenv("SCORING_SECTION_WEIGHT", "NaN")
	t.Setenv("DEFAULT_VECTOR_WEIGHT", "+Inf")

	cfg := Load()
	if cfg.VectorBackend != VectorBackendFullText {
		t.Fatalf("expected unknown backend to fall back, got %q", cfg.VectorBackend)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("expected malformed duration to fall back, got %s", cfg.RequestTimeout)
	}
	if cfg.AdapterLimit != 10 {
		t.Fatalf("expected malformed int to fall back, got %d", cfg.AdapterLimit)
	}
	if cfg.FusedWeight != 0.7 {
		t.Fatalf("expected malformed float to fall back, got %v", cfg.FusedWeight)
	}
	if cfg.RedisTTL != time.Hour {
		t.Fatalf("expected negative duration to fall back, got %s", cfg.RedisTTL)
	}
	if cfg.SectionWeight != 0.2 {
		t.Fatalf("expected NaN weight to fall back, got %v", cfg.SectionWeight)
	}
	if cfg.DefaultVectorWeight != 0.4 {
		t.Fatalf("expected infinite weight to fall back, got %v", cfg.DefaultVectorWeight)
	}
}
