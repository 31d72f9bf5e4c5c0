package stream

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"geomstat-agent/internal/model"
)

// Columns toggles the optional column groups of the plain-text table,
// mirroring the classic gstat -d/-o/-s switches.
type Columns struct {
	// Delete shows deallocation (TRIM) statistics.
	Delete bool
	// Other shows no-payload (flush, ioctl) statistics.
	Other bool
	// Size shows average transfer sizes.
	Size bool
}

// TableSink renders each batch as a fixed-width table, one block per
// collection cycle. It is the stdout stream mode; no cursor games, every
// cycle just appends a new table.
type TableSink struct {
	mu   sync.Mutex
	w    io.Writer
	cols Columns
}

func NewTableSink(w io.Writer, cols Columns) *TableSink {
	return &TableSink{w: w, cols: cols}
}

func (t *TableSink) SendDeviceMetrics(_ Context, metrics []model.DeviceMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	t.writeHeader(&b)
	for i := range metrics {
		t.writeRow(&b, &metrics[i])
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TableSink) Close(Context) error { return nil }

func (t *TableSink) writeHeader(b *strings.Builder) {
	b.WriteString(" L(q)  ops/s    r/s")
	if t.cols.Size {
		b.WriteString("   kB/r")
	}
	b.WriteString(" kBps/r   ms/r    w/s")
	if t.cols.Size {
		b.WriteString("   kB/w")
	}
	b.WriteString(" kBps/w   ms/w")
	if t.cols.Delete {
		b.WriteString("    d/s kBps/d   ms/d")
	}
	if t.cols.Other {
		b.WriteString("    o/s   ms/o")
	}
	b.WriteString("  %busy Name\n")
}

func (t *TableSink) writeRow(b *strings.Builder, m *model.DeviceMetrics) {
	fmt.Fprintf(b, "%5d %6.0f %6.0f", m.QueueLength, m.Total.TransfersPerSec, m.Read.TransfersPerSec)
	if t.cols.Size {
		fmt.Fprintf(b, " %6.0f", m.Read.KBPerTransfer)
	}
	fmt.Fprintf(b, " %6.0f %6.1f %6.0f", m.Read.MBPerSec*1024, m.Read.MsPerTransfer, m.Write.TransfersPerSec)
	if t.cols.Size {
		fmt.Fprintf(b, " %6.0f", m.Write.KBPerTransfer)
	}
	fmt.Fprintf(b, " %6.0f %6.1f", m.Write.MBPerSec*1024, m.Write.MsPerTransfer)
	if t.cols.Delete {
		fmt.Fprintf(b, " %6.0f %6.0f %6.1f", m.Free.TransfersPerSec, m.Free.MBPerSec*1024, m.Free.MsPerTransfer)
	}
	if t.cols.Other {
		fmt.Fprintf(b, " %6.0f %6.1f", m.Other.TransfersPerSec, m.Other.MsPerTransfer)
	}
	fmt.Fprintf(b, " %6.1f %s\n", m.BusyPct, m.Device)
}
