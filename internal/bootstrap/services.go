package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-moderation/config"
	"github.com/target/mmk-moderation/internal/adapters/jobrunner"
	schedrunner "github.com/target/mmk-moderation/internal/adapters/scheduler"
	"github.com/target/mmk-moderation/internal/adapters/storage"
	"github.com/target/mmk-moderation/internal/core"
	"github.com/target/mmk-moderation/internal/domain/job"
	"github.com/target/mmk-moderation/internal/domain/model"
	"github.com/target/mmk-moderation/internal/domain/moderation"
	"github.com/target/mmk-moderation/internal/service"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Dispatch   *service.DispatchService
	Results    *service.ResultService
	Aggregator *service.AggregatorService
	Analytics  *service.AnalyticsService
	Reaper     *service.ReaperService
	Scheduler  *service.SchedulerService
	// Processor is nil unless the worker service is enabled.
	Processor *service.Processor

	Queue         core.JobQueue
	Events        core.EventRepository
	Metrics       core.MetricRepository
	Files         *storage.LocalStore
	Observability ObservabilityContainer

	closeQueue func()
}

// Close releases queue listeners and the metrics connection.
func (c *ServiceContainer) Close() error {
	if c.closeQueue != nil {
		c.closeQueue()
	}
	return c.Observability.MetricsSink.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional unless the Redis queue or result cache is used
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters and services for the enabled modes.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.DB == nil {
		return nil, errors.New("config and database are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg, logger)

	files, err := buildFileStore(cfg.Uploads, logger)
	if err != nil {
		return nil, err
	}
	q, err := buildQueue(cfg.Queue, repos, deps.RedisClient, logger)
	if err != nil {
		return nil, err
	}

	c := &ServiceContainer{
		Queue:         q.JobQueue,
		Events:        repos.Events,
		Metrics:       repos.Metrics,
		Files:         files,
		Observability: obs,
		closeQueue:    q.close,
	}
	if err := wireServices(c, cfg, repos, logger); err != nil {
		q.close()
		return nil, err
	}
	return c, nil
}

func wireServices(c *ServiceContainer, cfg *config.AppConfig, repos *repositories, logger *slog.Logger) error {
	var err error
	if c.Dispatch, err = service.NewDispatchService(service.DispatchServiceOptions{
		Queue:       c.Queue,
		Results:     repos.Results,
		Files:       c.Files,
		Logger:      logger,
		MaxAttempts: cfg.Moderation.MaxAttempts,
	}); err != nil {
		return fmt.Errorf("create dispatch service: %w", err)
	}

	var cache core.CacheRepository
	if repos.Cache != nil {
		cache = repos.Cache
	}
	if c.Results, err = service.NewResultService(service.ResultServiceOptions{
		Repo:   repos.Results,
		Cache:  cache,
		TTL:    cfg.ResultCache.TTL,
		Logger: logger,
	}); err != nil {
		return fmt.Errorf("create result service: %w", err)
	}

	if c.Aggregator, err = service.NewAggregatorService(service.AggregatorServiceOptions{
		Events:    repos.Events,
		Analytics: repos.Analytics,
		Metrics:   repos.Metrics,
		Sink:      c.Observability.MetricsSink,
		Logger:    logger,
	}); err != nil {
		return fmt.Errorf("create aggregator service: %w", err)
	}

	if c.Analytics, err = service.NewAnalyticsService(service.AnalyticsServiceOptions{
		Metrics: repos.Metrics,
		Logger:  logger,
	}); err != nil {
		return fmt.Errorf("create analytics service: %w", err)
	}

	if c.Reaper, err = service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repos.Reaper,
		Files:   c.Files,
		Config:  cfg.Cleanup,
		Logger:  logger,
		Metrics: c.Observability.MetricsSink,
	}); err != nil {
		return fmt.Errorf("create reaper service: %w", err)
	}

	if c.Scheduler, err = service.NewSchedulerService(service.SchedulerServiceOptions{
		Runs:    repos.Runs,
		Rollup:  c.Aggregator,
		Cleanup: c.Reaper,
		Config:  cfg.Scheduler,
		Logger:  logger,
		Metrics: c.Observability.MetricsSink,
	}); err != nil {
		return fmt.Errorf("create scheduler service: %w", err)
	}

	if !cfg.IsWorkerEnabled() {
		return nil
	}
	clients, err := buildClassifiers(cfg.Classifier, logger)
	if err != nil {
		return err
	}
	c.Processor, err = service.NewProcessor(service.ProcessorOptions{
		Stores: service.ProcessorStores{
			Results: repos.Results,
			Events:  repos.Events,
			Metrics: repos.Metrics,
			Files:   c.Files,
		},
		Classifiers: service.ProcessorClassifiers{Text: clients.Text, Image: clients.Image},
		Policy: moderation.Policy{
			TextThreshold:  cfg.Moderation.TextThreshold,
			ImageThreshold: cfg.Moderation.ImageThreshold,
			ImageLabel:     cfg.Moderation.ImageLabel,
		},
		Retry:    job.RetryPolicy{MaxAttempts: cfg.Moderation.MaxAttempts, Backoff: cfg.Moderation.RetryBackoff},
		Notifier: c.Observability.FailureNotifier,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create processor: %w", err)
	}
	return nil
}

// ServiceOrchestrationConfig groups dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// backgroundService describes a long-running component started for one service mode.
type backgroundService struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

// buildBackgroundServices returns the components of every enabled mode.
func buildBackgroundServices(cfg *ServiceOrchestrationConfig) ([]backgroundService, error) {
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svcs := cfg.Services
	var out []backgroundService

	if enabled[config.ServiceModeHTTP] {
		server := NewHTTPServer(HTTPServerConfig{
			HTTP:     cfg.Config.HTTP,
			Uploads:  cfg.Config.Uploads,
			Services: svcs,
			Logger:   logger,
		})
		out = append(out, backgroundService{mode: config.ServiceModeHTTP, name: "http", run: server.Serve})
	}

	if enabled[config.ServiceModeWorker] {
		if svcs.Processor == nil {
			return nil, errors.New("worker service enabled without a processor")
		}
		concurrency := map[model.Kind]int{
			model.KindText:  cfg.Config.Worker.TextConcurrency,
			model.KindImage: cfg.Config.Worker.ImageConcurrency,
		}
		for _, kind := range model.Kinds() {
			runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
				Queue:       svcs.Queue,
				Processor:   svcs.Processor,
				Kind:        kind,
				Logger:      logger,
				Metrics:     svcs.Observability.MetricsSink,
				Concurrency: concurrency[kind],
			})
			if err != nil {
				return nil, fmt.Errorf("create %s runner: %w", kind, err)
			}
			out = append(out, backgroundService{mode: config.ServiceModeWorker, name: string(kind) + "-worker", run: runner.Run})
		}
	}

	if enabled[config.ServiceModeScheduler] {
		runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
			Scheduler: svcs.Scheduler,
			Interval:  cfg.Config.Scheduler.Interval,
			Logger:    logger,
			Metrics:   svcs.Observability.MetricsSink,
		})
		if err != nil {
			return nil, fmt.Errorf("create scheduler runner: %w", err)
		}
		out = append(out, backgroundService{mode: config.ServiceModeScheduler, name: "scheduler", run: runner.Run})
	}
	return out, nil
}

// RunServicesWithShutdown starts all enabled services and blocks until SIGINT/SIGTERM,
// ctx cancellation or the first service failure. Every service is stopped before it returns.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services, err := buildBackgroundServices(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			logger.InfoContext(gctx, "service started", "service", svc.name, "mode", svc.mode)
			defer logger.InfoContext(gctx, "service stopped", "service", svc.name)
			if err := svc.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.InfoContext(context.WithoutCancel(ctx), "all services stopped", "error", err)
	return err
}
