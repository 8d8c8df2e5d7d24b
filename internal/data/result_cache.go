package data

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

const (
	resultCacheKeyPrefix  = "cv:result:"
	defaultResultCacheTTL = 10 * time.Minute
)

type resultStore interface {
	Upsert(ctx context.Context, res *model.EvaluationResult) error
	Get(ctx context.Context, key string) (*model.EvaluationResult, error)
}

// CachedResultRepo is a read-through Redis cache in front of a result store.
// Cache failures degrade to the underlying store and are only logged.
type CachedResultRepo struct {
	inner  resultStore
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// ResultCacheOptions groups dependencies for NewCachedResultRepo.
type ResultCacheOptions struct {
	Store  resultStore
	Client redis.UniversalClient
	TTL    time.Duration
	Logger *slog.Logger
}

// NewCachedResultRepo wraps opts.Store with a Redis cache.
func NewCachedResultRepo(opts ResultCacheOptions) *CachedResultRepo {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultResultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResultRepo{
		inner:  opts.Store,
		client: opts.Client,
		ttl:    ttl,
		logger: logger.With("component", "result_cache"),
	}
}

func resultCacheKey(key string) string { return resultCacheKeyPrefix + key }

// Upsert writes through to the store and drops any cached copies of the result.
func (c *CachedResultRepo) Upsert(ctx context.Context, res *model.EvaluationResult) error {
	if err := c.inner.Upsert(ctx, res); err != nil {
		return err
	}
	keys := []string{resultCacheKey(res.CorrelationID)}
	if res.JobID != "" {
		keys = append(keys, resultCacheKey(res.JobID))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "result cache invalidate failed", "correlation_id", res.CorrelationID, "error", err)
	}
	return nil
}

// Get serves key from Redis when cached, otherwise loads it from the store and caches it.
// Misses are not cached.
func (c *CachedResultRepo) Get(ctx context.Context, key string) (*model.EvaluationResult, error) {
	if cached, ok := c.lookup(ctx, key); ok {
		return cached, nil
	}

	res, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if b, mErr := json.Marshal(res); mErr == nil {
		if sErr := c.client.Set(ctx, resultCacheKey(key), b, c.ttl).Err(); sErr != nil {
			c.logger.WarnContext(ctx, "result cache set failed", "key", key, "error", sErr)
		}
	}
	return res, nil
}

func (c *CachedResultRepo) lookup(ctx context.Context, key string) (*model.EvaluationResult, bool) {
	raw, err := c.client.Get(ctx, resultCacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "result cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var res model.EvaluationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.logger.WarnContext(ctx, "result cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}
