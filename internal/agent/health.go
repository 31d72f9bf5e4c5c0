package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	sourceConnected    atomic.Bool
	streamConnected    atomic.Bool
	lastDeviceSampleAt atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.sourceConnected.Store(false)
	h.streamConnected.Store(false)
	return h
}

func (h *HealthStatus) SetSourceConnected(ok bool) {
	h.sourceConnected.Store(ok)
}

func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.streamConnected.Store(ok)
}

func (h *HealthStatus) MarkDeviceSample(ts time.Time) {
	h.lastDeviceSampleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) Healthy() bool {
	return h.sourceConnected.Load()
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"source_connected": h.sourceConnected.Load(),
		"stream_connected": h.streamConnected.Load(),
	}
	if v := h.lastDeviceSampleAt.Load(); v > 0 {
		out["last_device_sample_at"] = time.Unix(0, v).UTC()
	}
	return out
}
