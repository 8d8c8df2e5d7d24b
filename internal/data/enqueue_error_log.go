package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hanifsetyadi/cv-analyzer/internal/domain/model"
)

const (
	// EnqueueErrorKey is the Redis list holding recent enqueue failures, newest first.
	EnqueueErrorKey         = "cv:job_errors"
	defaultEnqueueErrorsCap = 1000
)

// EnqueueErrorLog keeps a capped Redis list of submissions that could not be queued.
type EnqueueErrorLog struct {
	client redis.UniversalClient
	max    int64
}

// NewEnqueueErrorLog creates an EnqueueErrorLog that retains at most capacity entries.
func NewEnqueueErrorLog(client redis.UniversalClient, capacity int) *EnqueueErrorLog {
	if capacity <= 0 {
		capacity = defaultEnqueueErrorsCap
	}
	return &EnqueueErrorLog{client: client, max: int64(capacity)}
}

// Record pushes f to the head of the list and trims the tail.
func (l *EnqueueErrorLog) Record(ctx context.Context, f model.EnqueueFailure) error {
	if l == nil || l.client == nil {
		return errors.New("enqueue error log not configured")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal enqueue failure: %w", err)
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, EnqueueErrorKey, b)
	pipe.LTrim(ctx, EnqueueErrorKey, 0, l.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record enqueue failure: %w", err)
	}
	return nil
}

// List returns up to limit of the most recent failures.
func (l *EnqueueErrorLog) List(ctx context.Context, limit int) ([]model.EnqueueFailure, error) {
	if limit <= 0 || int64(limit) > l.max {
		limit = int(l.max)
	}
	raw, err := l.client.LRange(ctx, EnqueueErrorKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list enqueue failures: %w", err)
	}
	out := make([]model.EnqueueFailure, 0, len(raw))
	for _, item := range raw {
		var f model.EnqueueFailure
		if err := json.Unmarshal([]byte(item), &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
