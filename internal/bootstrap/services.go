package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imgforge/imgforge-api/config"
	"github.com/imgforge/imgforge-api/internal/adapters/blockdev"
	"github.com/imgforge/imgforge-api/internal/adapters/netconf"
	"github.com/imgforge/imgforge-api/internal/adapters/process"
	redisadapter "github.com/imgforge/imgforge-api/internal/adapters/redis"
	"github.com/imgforge/imgforge-api/internal/core"
	"github.com/imgforge/imgforge-api/internal/data"
	"github.com/imgforge/imgforge-api/internal/observability/notify/pagerduty"
	"github.com/imgforge/imgforge-api/internal/observability/notify/slack"
	"github.com/imgforge/imgforge-api/internal/observability/statsd"
	"github.com/imgforge/imgforge-api/internal/service"
	"github.com/imgforge/imgforge-api/internal/service/failurenotifier"
)

// ServiceContainer holds the components shared by every enabled service.
type ServiceContainer struct {
	Workspace    service.Workspace
	Registry     *data.JobRegistry
	Logs         *data.LogSink
	Orchestrator *service.Orchestrator
	Reaper       *service.ReaperService
	Devices      core.DeviceLister
	Wifi         core.WifiLister
	Images       service.ImageStore
	Uploads      service.UploadStore
	Events       *redisadapter.JobEvents // nil when the Redis mirror is disabled

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability adapters for reuse across services.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client // nil when metrics are disabled
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient // Optional: enables the event mirror
	Logger      *slog.Logger
}

// NewServices wires the job registry, log sink, adapters and services.
func NewServices(deps ServiceDeps) (ServiceContainer, error) {
	if deps.Config == nil {
		return ServiceContainer{}, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workspace := service.Workspace{
		ScratchDir: cfg.Storage.ScratchDir,
		ConfigsDir: cfg.Storage.ConfigsDir(),
		ImagesDir:  cfg.Storage.ImagesDir(),
		Workdir:    cfg.Storage.Workdir,
	}
	if err := workspace.Ensure(); err != nil {
		return ServiceContainer{}, fmt.Errorf("prepare workspace: %w", err)
	}

	observability := buildObservability(logger, cfg.Observability)

	var (
		events    *redisadapter.JobEvents
		publisher core.EventPublisher
	)
	if deps.RedisClient != nil {
		events = redisadapter.NewJobEvents(deps.RedisClient, redisadapter.JobEventsOptions{
			Prefix:      cfg.Redis.KeyPrefix,
			SnapshotTTL: cfg.Redis.SnapshotTTL,
		})
		publisher = events
	}
	mirror := service.NewTransitionMirror(publisher, logger)

	registry := data.NewJobRegistry(data.JobRegistryOptions{OnTransition: mirror.Observe})
	logs, err := data.NewLogSink(data.LogSinkOptions{Dir: cfg.Storage.ScratchDir, Logger: logger})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create log sink: %w", err)
	}

	devices, err := blockdev.NewLister(blockdev.Options{Logger: logger})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create device lister: %w", err)
	}

	container := ServiceContainer{
		Workspace:     workspace,
		Registry:      registry,
		Logs:          logs,
		Devices:       devices,
		Wifi:          netconf.NewWifiLister(cfg.Storage.NetworkConnectionsDir),
		Images:        service.ImageStore{Dir: workspace.ImagesDir},
		Uploads:       service.UploadStore{Dir: cfg.Storage.UploadDir},
		Events:        events,
		Observability: observability,
	}

	orchestratorOpts := service.OrchestratorOptions{
		Registry:  registry,
		Logs:      logs,
		Processes: process.NewRunner(process.Options{
			KillGrace:    cfg.Jobs.KillGrace,
			OutputGrace:  cfg.Jobs.OutputGrace,
			MaxLineBytes: cfg.Jobs.MaxLineBytes,
			Logger:       logger,
		}),
		Workspace: workspace,
		Config:    cfg.Jobs,
		Logger:    logger,
	}
	// Typed nils must not leak into the optional interfaces.
	if publisher != nil {
		orchestratorOpts.Events = publisher
	}
	if observability.FailureNotifier.Enabled() {
		orchestratorOpts.Failures = observability.FailureNotifier
	}
	if observability.MetricsSink != nil {
		orchestratorOpts.Metrics = observability.MetricsSink
	}

	container.Orchestrator, err = service.NewOrchestrator(orchestratorOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create orchestrator: %w", err)
	}

	reaperOpts := service.ReaperServiceOptions{
		Registry:  registry,
		Logs:      logs,
		Workspace: workspace,
		Config:    cfg.Reaper,
		Logger:    logger,
	}
	if observability.MetricsSink != nil {
		reaperOpts.Metrics = observability.MetricsSink
	}
	container.Reaper, err = service.NewReaperService(reaperOpts)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create reaper: %w", err)
	}

	return container, nil
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.FromConfig(cfg.Metrics, obsLogger)
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	metadata := map[string]string{}
	if host, err := os.Hostname(); err == nil && host != "" {
		metadata["host"] = host
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger:   baseLogger.With("component", "failure_notifier"),
		Sinks:    sinks,
		Metadata: metadata,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
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

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
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

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Reaper == nil {
				return nil
			}
			return deps.cfg.Services.Reaper.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		services:    cfg.Services,
		redis:       cfg.RedisClient,
		jobsTimeout: cfg.Config.Jobs.ShutdownTimeout,
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
	services    ServiceContainer
	redis       redis.UniversalClient
	jobsTimeout time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	signals     <-chan os.Signal // tests inject signals here
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	select {
	case sig := <-quit:
		cfg.logger.Info("shutting down services...", "signal", sig.String())
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

// gracefulStop stops the HTTP server, then running jobs, then background
// services, and finally releases shared clients.
func gracefulStop(cfg shutdownConfig) error {
	var errs []error

	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		})
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
	}

	if orch := cfg.services.Orchestrator; orch != nil {
		timeout := cfg.jobsTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		jobsCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := orch.Shutdown(jobsCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop running jobs: %w", err))
		} else {
			cfg.logger.Info("job orchestrator stopped")
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.services.Logs != nil {
		if err := cfg.services.Logs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log sink: %w", err))
		}
	}
	if sink := cfg.services.Observability.MetricsSink; sink != nil {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	if cfg.redis != nil {
		if err := cfg.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}

	return errors.Join(errs...)
}

// waitForService waits for a service to finish with timeout.
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
