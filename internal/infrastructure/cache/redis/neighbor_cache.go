package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
	"github.com/kirillkom/regulation-hybrid-search/internal/core/ports"
)

const keyPrefix = "regsearch:neighbors:"

type Options struct {
	URL            string
	TTL            time.Duration
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// NeighborCache is a read-through cache in front of a graph collaborator.
// Cache errors are logged and never fail a lookup.
type NeighborCache struct {
	next   ports.GraphNeighborFinder
	client *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func Connect(ctx context.Context, opts Options) (*goredis.Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	redisOpts, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ConnectTimeout
	redisOpts.WriteTimeout = opts.ConnectTimeout

	client := goredis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.WrapError(domain.ErrUnavailable, "redis connect", err)
	}
	return client, nil
}

func NewNeighborCache(next ports.GraphNeighborFinder, client *goredis.Client, opts Options) *NeighborCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NeighborCache{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *NeighborCache) GetNeighbors(ctx context.Context, nodeID string, maxResults int) ([]domain.Neighbor, error) {
	key := cacheKey(nodeID, maxResults)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached []domain.Neighbor
		jsonErr := json.Unmarshal(raw, &cached)
		if jsonErr == nil {
			return cached, nil
		}
		c.logger.Warn("neighbor_cache_decode_failed", "node_id", nodeID, "error", jsonErr)
	case !errors.Is(err, goredis.Nil):
		c.logger.Warn("neighbor_cache_read_failed", "node_id", nodeID, "error", err)
	}

	neighbors, err := c.next.GetNeighbors(ctx, nodeID, maxResults)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(neighbors)
	if err != nil {
		return neighbors, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("neighbor_cache_write_failed", "node_id", nodeID, "error", err)
	}
	return neighbors, nil
}

func (c *NeighborCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return domain.WrapError(domain.ErrUnavailable, "redis ping", err)
	}
	return nil
}

func (c *NeighborCache) Close() error {
	return c.client.Close()
}

func cacheKey(nodeID string, maxResults int) string {
	sum := sha256.Sum256([]byte(nodeID + "\x00" + strconv.Itoa(maxResults)))
	return keyPrefix + hex.EncodeToString(sum[:])
}
