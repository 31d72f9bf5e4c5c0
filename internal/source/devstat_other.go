//go:build !freebsd

package source

import (
	"context"
	"errors"
	"log/slog"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/topology"
)

var errNotFreeBSD = errors.New("the devstat counter source requires a FreeBSD kernel")

// DevstatSource is unavailable off FreeBSD; OpenDevstat fails so the agent
// reports a clear error instead of silently producing nothing.
type DevstatSource struct{}

func OpenDevstat(*slog.Logger) (*DevstatSource, error) {
	return nil, &AcquisitionError{Op: "open kern.devstat.all", Err: errNotFreeBSD}
}

func (s *DevstatSource) Acquire(context.Context) (*devstat.Snapshot, error) {
	return nil, &AcquisitionError{Op: "read kern.devstat.all", Err: errNotFreeBSD}
}

func (s *DevstatSource) Resolver(context.Context) (topology.Resolver, error) {
	return nil, &AcquisitionError{Op: "read kern.geom.confxml", Err: errNotFreeBSD}
}

func (s *DevstatSource) Uptime() (float64, error) { return 0, errNotFreeBSD }

func (s *DevstatSource) Healthy(context.Context) error { return errNotFreeBSD }

func (s *DevstatSource) Close() error { return nil }
