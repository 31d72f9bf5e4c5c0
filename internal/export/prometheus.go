// Package export publishes raw device counters as Prometheus metrics. The
// exporter scrapes the counter source on demand and emits cumulative values;
// rate math is left to the query side, unlike the streaming path which ships
// precomputed deltas.
package export

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/source"
)

const namespace = "geom"

// scrapeTimeout bounds one kernel read; a scrape must never hold the
// registry lock indefinitely.
const scrapeTimeout = 5 * time.Second

// Filter narrows which providers the exporter publishes.
type Filter struct {
	Include      *regexp.Regexp
	Exclude      *regexp.Regexp
	PhysicalOnly bool
}

// Exporter implements prometheus.Collector over a counter source. Every
// scrape acquires a fresh snapshot, so two scrapes never share state and the
// exporter needs no mutex.
type Exporter struct {
	src    source.Source
	filter Filter
	logger *slog.Logger

	bytes       *prometheus.Desc
	operations  *prometheus.Desc
	duration    *prometheus.Desc
	busyTime    *prometheus.Desc
	queueLength *prometheus.Desc
	up          *prometheus.Desc
}

func NewExporter(src source.Source, filter Filter, logger *slog.Logger) *Exporter {
	return &Exporter{
		src:    src,
		filter: filter,
		logger: logger,

		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes"),
			"Total bytes processed.",
			[]string{"device", "method"}, nil,
		),
		operations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "operations"),
			"Total operations processed.",
			[]string{"device", "method"}, nil,
		),
		duration: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "duration"),
			"Total time spent processing commands in seconds.",
			[]string{"device", "method"}, nil,
		),
		busyTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "busy_time"),
			"Cumulative time in seconds that the device had at least one outstanding operation.",
			[]string{"device"}, nil,
		),
		queueLength: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_length"),
			"Number of incomplete transactions at the sampling instant.",
			[]string{"device"}, nil,
		),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"Whether the last counter acquisition succeeded.",
			nil, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.bytes
	ch <- e.operations
	ch <- e.duration
	ch <- e.busyTime
	ch <- e.queueLength
	ch <- e.up
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	snap, err := e.src.Acquire(ctx)
	if err != nil {
		e.logger.Warn("scrape failed to acquire counters", "error", err)
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 0)
		return
	}
	resolver, err := e.src.Resolver(ctx)
	if err != nil {
		e.logger.Warn("scrape failed to resolve topology", "error", err)
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 1)

	for _, rec := range snap.Records() {
		info, ok := resolver.Resolve(rec.ID)
		if !ok || !info.IsProvider {
			continue
		}
		if e.filter.PhysicalOnly && info.Rank != 1 {
			continue
		}
		if e.filter.Include != nil && !e.filter.Include.MatchString(info.Name) {
			continue
		}
		if e.filter.Exclude != nil && e.filter.Exclude.MatchString(info.Name) {
			continue
		}

		// Cumulative view: no previous snapshot and no elapsed time, so only
		// the raw totals are meaningful.
		stats := devstat.Compute(rec, nil, 0)
		for c := devstat.OpClass(0); c < devstat.NumOpClasses; c++ {
			method := c.String()
			ch <- prometheus.MustNewConstMetric(e.bytes, prometheus.GaugeValue,
				float64(stats.Bytes(c)), info.Name, method)
			ch <- prometheus.MustNewConstMetric(e.operations, prometheus.GaugeValue,
				float64(stats.Transfers(c)), info.Name, method)
			ch <- prometheus.MustNewConstMetric(e.duration, prometheus.GaugeValue,
				stats.Duration(c), info.Name, method)
		}
		ch <- prometheus.MustNewConstMetric(e.busyTime, prometheus.GaugeValue,
			stats.BusyTime(), info.Name)
		ch <- prometheus.MustNewConstMetric(e.queueLength, prometheus.GaugeValue,
			float64(stats.QueueLength()), info.Name)
	}
}
