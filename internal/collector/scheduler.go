package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"geomstat-agent/internal/stream"
)

// Scheduler drives the collect/send loop on a fixed interval. Each tick runs
// to completion before the next is considered; a failed cycle logs once and
// backs off instead of tightening the loop.
type Scheduler struct {
	logger       *slog.Logger
	devices      *DeviceCollector
	sink         stream.Sink
	interval     time.Duration
	errorBackoff time.Duration
}

func NewScheduler(
	logger *slog.Logger,
	devices *DeviceCollector,
	sink stream.Sink,
	interval, errorBackoff time.Duration,
) *Scheduler {
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Scheduler{
		logger:       logger,
		devices:      devices,
		sink:         sink,
		interval:     interval,
		errorBackoff: errorBackoff,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.runDeviceLoop(gctx)
	})
	return g.Wait()
}

func (s *Scheduler) runDeviceLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.collectAndSend(ctx); err != nil {
		s.logger.Warn("initial device collect failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.collectAndSend(ctx); err != nil {
				s.logger.Error("device collect/send failed", "error", err)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) collectAndSend(ctx context.Context) error {
	metrics, err := s.devices.Collect(ctx)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		return nil
	}
	return s.sink.SendDeviceMetrics(ctx, metrics)
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
