package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *Agent) run(ctx context.Context) error {
	a.health.SetSourceConnected(true)
	a.health.SetStreamConnected(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})
	g.Go(func() error {
		return a.runMetricsListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			// Source.Healthy repairs its own channel where it can, so a
			// returned error means the source is genuinely unreachable.
			if err := a.src.Healthy(ctx); err != nil {
				a.logger.Warn("counter source health check failed", "error", err)
				a.health.SetSourceConnected(false)
				continue
			}
			a.health.SetSourceConnected(true)
			_ = a.logHealth("ok")
		}
	}
}

func (a *Agent) logHealth(status string) error {
	a.logger.Log(context.Background(), slog.LevelDebug, "agent health", "status", status, "snapshot", a.health.Snapshot())
	return nil
}

func (a *Agent) shutdown(ctx context.Context) {
	if err := a.sink.Close(ctx); err != nil {
		a.logger.Warn("stream sink close failed", "error", err)
	}
	a.health.SetStreamConnected(false)
	if err := a.src.Close(); err != nil {
		a.logger.Warn("counter source close failed", "error", err)
	}
	a.health.SetSourceConnected(false)
}
