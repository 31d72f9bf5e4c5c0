package export

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"geomstat-agent/internal/devstat"
	"geomstat-agent/internal/source"
	"geomstat-agent/internal/topology"
)

func testRecord(id devstat.DeviceID, readBytes, readOps uint64) devstat.Record {
	rec := devstat.Record{ID: id, BlockSize: 512}
	rec.PerClass[devstat.OpRead] = devstat.ClassCounters{
		Ops:      readOps,
		Bytes:    readBytes,
		Duration: devstat.Bintime{Sec: 2},
	}
	rec.StartCount = 5
	rec.EndCount = 3
	return rec
}

func testSource() *source.Static {
	resolver := topology.Static{
		1: {IsProvider: true, Name: "ada0", Rank: 1},
		2: {IsProvider: true, Name: "ada0p1", Rank: 2},
		3: {IsProvider: false, Name: "part/ada0p1"},
	}
	records := []devstat.Record{
		testRecord(1, 4096, 8),
		testRecord(2, 1024, 2),
		testRecord(3, 512, 1),
	}
	return source.NewStatic(records, resolver, 100)
}

func TestExporterRegistersAndGathers(t *testing.T) {
	exp := NewExporter(testSource(), Filter{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(exp))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"geom_bytes",
		"geom_operations",
		"geom_duration",
		"geom_busy_time",
		"geom_queue_length",
		"geom_up",
	} {
		require.True(t, names[want], "missing metric family %s", want)
	}
}

func TestExporterValues(t *testing.T) {
	exp := NewExporter(testSource(), Filter{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expected := `
# HELP geom_queue_length Number of incomplete transactions at the sampling instant.
# TYPE geom_queue_length gauge
geom_queue_length{device="ada0"} 2
geom_queue_length{device="ada0p1"} 2
`
	require.NoError(t, testutil.CollectAndCompare(exp, strings.NewReader(expected), "geom_queue_length"))
}

func TestExporterAppliesFilter(t *testing.T) {
	filter := Filter{
		Include:      regexp.MustCompile("^ada"),
		PhysicalOnly: true,
	}
	exp := NewExporter(testSource(), filter, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expected := `
# HELP geom_queue_length Number of incomplete transactions at the sampling instant.
# TYPE geom_queue_length gauge
geom_queue_length{device="ada0"} 2
`
	require.NoError(t, testutil.CollectAndCompare(exp, strings.NewReader(expected), "geom_queue_length"))
}

func TestExporterExcludeDropsDevices(t *testing.T) {
	filter := Filter{Exclude: regexp.MustCompile(`p\d+$`)}
	exp := NewExporter(testSource(), filter, slog.New(slog.NewTextHandler(io.Discard, nil)))

	count := testutil.CollectAndCount(exp, "geom_queue_length")
	require.Equal(t, 1, count)
}
