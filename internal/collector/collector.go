package collector

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/model"
	"geomstat-agent/internal/source"
	"geomstat-agent/internal/topology"
)

// autoBusyThreshold is the minimum busy percentage a device must show for
// the auto filter to report it, matching gstat's -a switch.
const autoBusyThreshold = 0.1

// Filter narrows which providers a collection cycle reports.
type Filter struct {
	// Include, when set, keeps only devices whose name matches.
	Include *regexp.Regexp
	// Exclude, when set, drops devices whose name matches. Applied after
	// Include.
	Exclude *regexp.Regexp
	// PhysicalOnly keeps only rank-1 providers.
	PhysicalOnly bool
	// AutoOnly keeps only devices at least 0.1% busy.
	AutoOnly bool
}

// DeviceCollector turns counter snapshots into per-device metrics. It owns
// at most two snapshots at a time — the previous and the current — and runs
// one cycle to completion before the next begins; it is not safe for
// concurrent Collect calls.
type DeviceCollector struct {
	src    source.Source
	nodeID string
	logger *slog.Logger
	filter Filter

	prev *devstat.Snapshot
}

func NewDeviceCollector(src source.Source, nodeID string, filter Filter, logger *slog.Logger) *DeviceCollector {
	return &DeviceCollector{
		src:    src,
		nodeID: nodeID,
		logger: logger,
		filter: filter,
	}
}

// Collect acquires a fresh snapshot, pairs it against the previous one by
// device identity, and derives metrics for every provider that passes the
// filter. The first cycle after startup reports cumulative activity since
// the counters began (device attach / system boot).
func (c *DeviceCollector) Collect(ctx context.Context) ([]model.DeviceMetrics, error) {
	cur, err := c.src.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := c.src.Resolver(ctx)
	if err != nil {
		return nil, err
	}

	var etime float64
	if c.prev != nil {
		etime = cur.Timestamp().Sub(c.prev.Timestamp()).Seconds()
	} else if uptime, upErr := c.src.Uptime(); upErr == nil {
		etime = uptime
	} else {
		c.logger.Debug("uptime unavailable, first cycle reports zero rates", "error", upErr)
	}

	now := time.Now().UTC()
	out := make([]model.DeviceMetrics, 0, cur.Len())
	for _, pair := range cur.PairByID(c.prev) {
		info, ok := resolver.Resolve(pair.Cur.ID)
		if !ok || !info.IsProvider {
			continue
		}
		if c.filter.PhysicalOnly && info.Rank != 1 {
			continue
		}
		if c.filter.Include != nil && !c.filter.Include.MatchString(info.Name) {
			continue
		}
		if c.filter.Exclude != nil && c.filter.Exclude.MatchString(info.Name) {
			continue
		}

		stats := devstat.Compute(pair.Cur, pair.Prev, etime)
		if c.filter.AutoOnly && stats.BusyPct() < autoBusyThreshold {
			continue
		}
		out = append(out, buildDeviceMetrics(c.nodeID, info, &stats, now))
	}

	// The old snapshot is no longer needed once the deltas are computed.
	c.prev = cur
	return out, nil
}

func buildDeviceMetrics(nodeID string, info topology.Info, stats *devstat.Stats, at time.Time) model.DeviceMetrics {
	return model.DeviceMetrics{
		NodeID:        nodeID,
		Device:        info.Name,
		Rank:          info.Rank,
		TimestampUnix: at.Unix(),

		QueueLength:     stats.QueueLength(),
		BusyPct:         stats.BusyPct(),
		BusyTimeSeconds: stats.BusyTime(),

		Read:  classMetrics(stats, devstat.OpRead),
		Write: classMetrics(stats, devstat.OpWrite),
		Free:  classMetrics(stats, devstat.OpFree),
		Other: classMetrics(stats, devstat.OpOther),
		Total: model.ClassMetrics{
			Transfers:       stats.TotalTransfers(),
			Bytes:           stats.TotalBytes(),
			Blocks:          stats.TotalBlocks(),
			DurationSeconds: stats.TotalDuration(),
			TransfersPerSec: stats.TotalTransfersPerSecond(),
			BlocksPerSec:    stats.TotalBlocksPerSecond(),
			MBPerSec:        stats.TotalMBPerSecond(),
			KBPerTransfer:   stats.TotalKBPerTransfer(),
			MsPerTransfer:   stats.TotalMsPerTransfer(),
		},
	}
}

func classMetrics(stats *devstat.Stats, c devstat.OpClass) model.ClassMetrics {
	return model.ClassMetrics{
		Transfers:       stats.Transfers(c),
		Bytes:           stats.Bytes(c),
		Blocks:          stats.Blocks(c),
		DurationSeconds: stats.Duration(c),
		TransfersPerSec: stats.TransfersPerSecond(c),
		BlocksPerSec:    stats.BlocksPerSecond(c),
		MBPerSec:        stats.MBPerSecond(c),
		KBPerTransfer:   stats.KBPerTransfer(c),
		MsPerTransfer:   stats.MsPerTransfer(c),
	}
}
