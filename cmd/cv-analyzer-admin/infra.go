package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hanifsetyadi/cv-analyzer/internal/bootstrap"
)

// withDatabase connects to Postgres for the duration of f, bounded by timeout.
func (a *app) withDatabase(
	ctx context.Context,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: a.cfg.Postgres,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			a.logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

// withRedis connects to Redis for the duration of f.
func (a *app) withRedis(ctx context.Context, f func(context.Context, redis.UniversalClient) error) error {
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: a.cfg.Redis,
		Logger:      a.logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			a.logger.Warn("redis close failed", "error", cerr)
		}
	}()

	return f(ctx, client)
}
