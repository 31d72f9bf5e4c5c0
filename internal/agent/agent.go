package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"geomstat-agent/internal/collector"
	"geomstat-agent/internal/config"
	"geomstat-agent/internal/export"
	"geomstat-agent/internal/model"
	"geomstat-agent/internal/source"
	"geomstat-agent/internal/stream"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	src       source.Source
	scheduler *collector.Scheduler
	sink      stream.Sink
	registry  *prometheus.Registry
	health    *HealthStatus
}

// New opens the counter source and wires the collect/stream pipeline. The
// context bounds the initial source open only; the agent's lifetime is
// governed by the context passed to Run.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	sink, err := stream.NewSinkFromConfig(cfg, tlsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("stream sink: %w", err)
	}

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("counter source: %w", err)
	}

	include, err := cfg.IncludeRegexp()
	if err != nil {
		return nil, err
	}
	exclude, err := cfg.ExcludeRegexp()
	if err != nil {
		return nil, err
	}
	filter := collector.Filter{
		Include:      include,
		Exclude:      exclude,
		PhysicalOnly: cfg.PhysicalOnly,
		AutoOnly:     cfg.AutoOnly,
	}

	health := NewHealthStatus()
	wrappedSink := &healthSink{sink: sink, health: health}
	devices := collector.NewDeviceCollector(src, cfg.NodeID, filter, logger)
	scheduler := collector.NewScheduler(
		logger,
		devices,
		wrappedSink,
		cfg.PollInterval,
		cfg.CollectorErrorBackoff,
	)

	registry := prometheus.NewRegistry()
	exporter := export.NewExporter(src, export.Filter{
		Include:      include,
		Exclude:      exclude,
		PhysicalOnly: cfg.PhysicalOnly,
	}, logger)
	if err := registry.Register(exporter); err != nil {
		return nil, fmt.Errorf("register exporter: %w", err)
	}

	return &Agent{
		cfg:       cfg,
		logger:    logger,
		src:       src,
		scheduler: scheduler,
		sink:      wrappedSink,
		registry:  registry,
		health:    health,
	}, nil
}

func openSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source {
	case config.SourceLibvirt:
		return source.OpenLibvirt(ctx, cfg.LibvirtURI, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
	default:
		return source.OpenDevstat(logger)
	}
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting geomstat-agent",
		"node_id", a.cfg.NodeID,
		"source", a.cfg.Source,
		"stream_mode", a.cfg.StreamMode,
		"poll_interval", a.cfg.PollInterval,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Agent terminated by itself (startup error/runtime error/parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
			// graceful stop completed in time
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("geomstat-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	// Log to stderr so the stdout table mode keeps a clean display stream.
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hOpts))
}

type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) SendDeviceMetrics(ctx stream.Context, metrics []model.DeviceMetrics) error {
	err := s.sink.SendDeviceMetrics(ctx, metrics)
	if err != nil {
		s.health.SetStreamConnected(false)
		return err
	}
	s.health.SetStreamConnected(true)
	if len(metrics) > 0 && metrics[0].TimestampUnix > 0 {
		s.health.MarkDeviceSample(time.Unix(metrics[0].TimestampUnix, 0).UTC())
	}
	return nil
}

func (s *healthSink) Close(ctx stream.Context) error {
	return s.sink.Close(ctx)
}
