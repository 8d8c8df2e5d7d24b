package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hanifsetyadi/cv-analyzer/config"
	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/gemini"
	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/pdftext"
	"github.com/hanifsetyadi/cv-analyzer/internal/adapters/storage"
	"github.com/hanifsetyadi/cv-analyzer/internal/core"
	"github.com/hanifsetyadi/cv-analyzer/internal/data"
	"github.com/hanifsetyadi/cv-analyzer/internal/observability/statsd"
	"github.com/hanifsetyadi/cv-analyzer/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Queue   *service.QueueService
	Status  *service.StatusResolver
	Uploads *service.UploadService
	// Rubrics and Evaluator are nil when no Gemini API key is configured.
	Rubrics       *service.RubricService
	Evaluator     *service.Evaluator
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled.
	MetricsSink   statsd.Sink
	MetricsConfig config.ObservabilityMetricsConfig
	client        *statsd.Client
}

// Close releases the metrics connection.
func (o ObservabilityContainer) Close() error {
	return o.client.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Queue   *data.QueueRepo
	Results core.ResultRepository
	Rubrics *data.RubricRepo
	// EnqueueErrors is nil without Redis.
	EnqueueErrors core.EnqueueErrorRecorder
}

// buildObservability configures the StatsD sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return out
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  cfg.Metrics.StatsdPrefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.client = client
	out.MetricsSink = client
	return out
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(cfg *config.AppConfig, db *sql.DB, rdb redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		Queue: data.NewQueueRepo(db, data.RepoConfig{
			DefaultMaxAttempts: cfg.Queue.MaxAttempts,
			DefaultBackoff:     cfg.Queue.BackoffPolicy(),
			Logger:             logger,
		}),
		Rubrics: data.NewRubricRepo(db),
	}

	results := data.NewResultRepo(db, nil)
	if rdb == nil {
		repos.Results = results
		return repos
	}
	repos.Results = data.NewCachedResultRepo(data.ResultCacheOptions{
		Store:  results,
		Client: rdb,
		TTL:    cfg.ResultCache.TTL,
		Logger: logger,
	})
	repos.EnqueueErrors = data.NewEnqueueErrorLog(rdb, 0)
	return repos
}

// evaluationBackends are the adapters only needed when Gemini is configured.
type evaluationBackends struct {
	gemini    *gemini.Client
	documents core.DocumentStore
	extractor core.TextExtractor
}

func buildEvaluationServices(
	cfg *config.AppConfig,
	repos *serviceRepositories,
	backends evaluationBackends,
	obs ObservabilityContainer,
	logger *slog.Logger,
) (*service.RubricService, *service.Evaluator, error) {
	rubrics, err := service.NewRubricService(service.RubricServiceOptions{
		Repo:     repos.Rubrics,
		Embedder: backends.gemini,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rubric service: %w", err)
	}

	assembler, err := service.NewContextAssembler(service.ContextAssemblerOptions{
		Embedder:    backends.gemini,
		Index:       repos.Rubrics,
		K:           cfg.Context.K,
		MaxAttempts: cfg.Context.MaxAttempts,
		RetryDelay:  cfg.Context.RetryDelay,
		Logger:      logger,
		Metrics:     obs.MetricsSink,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("context assembler: %w", err)
	}

	evaluator, err := service.NewEvaluator(service.EvaluatorOptions{
		Documents:         backends.documents,
		Extractor:         backends.extractor,
		Context:           assembler,
		Generator:         backends.gemini,
		Results:           repos.Results,
		GenerationTimeout: cfg.Worker.GenerationTimeout,
		Logger:            logger,
		Metrics:           obs.MetricsSink,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("evaluator: %w", err)
	}
	return rubrics, evaluator, nil
}

// NewServices wires repositories, adapters and domain services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(cfg, deps.DB, deps.RedisClient, logger)

	queue, err := service.NewQueueService(service.QueueServiceOptions{
		Repo:          repos.Queue,
		DefaultLease:  cfg.Worker.JobLease,
		Logger:        logger,
		ErrorRecorder: repos.EnqueueErrors,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("queue service: %w", err)
	}

	status, err := service.NewStatusResolver(service.StatusResolverOptions{
		Queue:   repos.Queue,
		Results: repos.Results,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("status resolver: %w", err)
	}

	docs, err := storage.NewLocalStore(storage.LocalStoreOptions{Dir: cfg.Storage.UploadDir, Logger: logger})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("document store: %w", err)
	}
	uploads, err := service.NewUploadService(service.UploadServiceOptions{
		Store:    docs,
		MaxBytes: cfg.HTTP.UploadMaxBytes,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("upload service: %w", err)
	}

	container := ServiceContainer{
		Queue:         queue,
		Status:        status,
		Uploads:       uploads,
		Observability: obs,
	}

	if cfg.Gemini.APIKey == "" {
		logger.WarnContext(ctx, "gemini api key not set; rubric ingestion and evaluation are disabled")
		return container, nil
	}
	client, err := gemini.NewClient(ctx, gemini.Options{Config: cfg.Gemini, Logger: logger})
	if err != nil {
		return ServiceContainer{}, err
	}
	container.Rubrics, container.Evaluator, err = buildEvaluationServices(cfg, repos, evaluationBackends{
		gemini:    client,
		documents: docs,
		extractor: pdftext.New(cfg.HTTP.UploadMaxBytes),
	}, obs, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	return container, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:      deps.cfg.Config,
		Services:    deps.cfg.Services,
		DB:          deps.cfg.DB,
		RedisClient: deps.cfg.RedisClient,
		Logger:      deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}
	return handles
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "evaluation worker",
		start: func(ctx context.Context) error {
			svcs := deps.cfg.Services
			if svcs.Evaluator == nil {
				return errors.New("evaluation backend is not configured")
			}
			return RunWorker(ctx, WorkerRunConfig{
				Queue:    svcs.Queue,
				Pipeline: svcs.Evaluator,
				Logger:   deps.logger,
				Metrics:  svcs.Observability.MetricsSink,
				Worker:   deps.cfg.Config.Worker,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			return RunReaper(ctx, ReaperConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  deps.cfg.Config.Reaper,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// It blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		queue:       cfg.Services.Queue,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	queue       *service.QueueService
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	signals     <-chan os.Signal
}

// waitForShutdown waits for a shutdown signal or a service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server and waits for background services.
// Workers report interrupted jobs as failed before they exit.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: context.WithoutCancel(cfg.ctx),
			Server:  cfg.httpServer,
			Queue:   cfg.queue,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}
	return nil
}

func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
