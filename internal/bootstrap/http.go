package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hanifsetyadi/cv-analyzer/config"
	httpx "github.com/hanifsetyadi/cv-analyzer/internal/http"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	return startServer(logger, httpx.NewRouter(routerServices(cfg, logger)), appCfg.HTTP.Addr)
}

func routerServices(cfg *HTTPServerConfig, logger *slog.Logger) httpx.RouterServices {
	services := httpx.RouterServices{
		Queue:     cfg.Services.Queue,
		Status:    cfg.Services.Status,
		Readiness: readinessChecks(cfg.DB, cfg.RedisClient),
		Logger:    logger,
	}
	// Assigned conditionally so a nil service leaves the route unregistered.
	if cfg.Services.Uploads != nil {
		services.Uploads = cfg.Services.Uploads
	}
	if cfg.Services.Rubrics != nil {
		services.Rubrics = cfg.Services.Rubrics
	}
	return services
}

func readinessChecks(db *sql.DB, rdb redis.UniversalClient) map[string]httpx.Pinger {
	checks := make(map[string]httpx.Pinger, 2)
	if db != nil {
		checks["postgres"] = db
	}
	if rdb != nil {
		checks["redis"] = httpx.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return checks
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Queue   *service.QueueService
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Release idle workers blocked on queue notifications.
	if cfg.Queue != nil {
		cfg.Queue.StopAll()
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()
	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
