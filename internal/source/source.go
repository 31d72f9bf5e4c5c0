// Package source supplies counter snapshots to the statistics engine. Each
// source owns whatever kernel or RPC channel it reads from: construction
// performs the one-time channel open, Close releases it, and there is no
// package-level state, so tests can build as many isolated sources as they
// want.
package source

import (
	"context"
	"fmt"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/topology"
)

// Source produces counter snapshots for one family of block devices.
type Source interface {
	// Acquire reads the counter table once. Failures come back as
	// *AcquisitionError and void the whole cycle; the caller decides whether
	// to retry on the next tick.
	Acquire(ctx context.Context) (*devstat.Snapshot, error)

	// Resolver returns the topology lookup matching the identities of the
	// most recent snapshots.
	Resolver(ctx context.Context) (topology.Resolver, error)

	// Uptime returns how long the counters have been accumulating, in
	// seconds. Used as the elapsed time for the since-boot (no previous
	// snapshot) case; 0 means unknown and zeroes all per-second metrics.
	Uptime() (float64, error)

	// Healthy verifies the underlying channel still answers.
	Healthy(ctx context.Context) error

	Close() error
}

// AcquisitionError reports a failed channel open or snapshot read.
type AcquisitionError struct {
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("counter acquisition: %s: %v", e.Op, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
