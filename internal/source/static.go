package source

import (
	"context"
	"sync"
	"time"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/topology"
)

// Static serves a fixed set of records with a fresh timestamp per
// acquisition. It backs tests and the demo stream mode; records can be
// swapped between acquisitions to simulate counter movement.
type Static struct {
	mu       sync.Mutex
	records  []devstat.Record
	resolver topology.Resolver
	uptime   float64
	opened   time.Time
}

func NewStatic(records []devstat.Record, resolver topology.Resolver, uptime float64) *Static {
	return &Static{
		records:  append([]devstat.Record(nil), records...),
		resolver: resolver,
		uptime:   uptime,
		opened:   time.Now(),
	}
}

// SetRecords replaces the record set served by subsequent acquisitions.
func (s *Static) SetRecords(records []devstat.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]devstat.Record(nil), records...)
}

func (s *Static) Acquire(context.Context) (*devstat.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := devstat.FromNanoseconds(uint64(time.Now().UnixNano()))
	return devstat.NewSnapshot(taken, s.records), nil
}

func (s *Static) Resolver(context.Context) (topology.Resolver, error) {
	return s.resolver, nil
}

func (s *Static) Uptime() (float64, error) {
	if s.uptime > 0 {
		return s.uptime, nil
	}
	return time.Since(s.opened).Seconds(), nil
}

func (s *Static) Healthy(context.Context) error { return nil }

func (s *Static) Close() error { return nil }
