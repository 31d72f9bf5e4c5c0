package model

import "time"

type MetricType string

const (
	MetricTypeDevice MetricType = "device_metrics"
)

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type      MetricType `json:"type"`
	NodeID    string     `json:"node_id"`
	Timestamp time.Time  `json:"timestamp"`
	Payload   any        `json:"payload"`
}

// ClassMetrics carries one operation class's share of a sampling interval.
type ClassMetrics struct {
	Transfers       uint64  `json:"transfers"`
	Bytes           uint64  `json:"bytes"`
	Blocks          uint64  `json:"blocks"`
	DurationSeconds float64 `json:"duration_seconds"`
	TransfersPerSec float64 `json:"transfers_per_sec"`
	BlocksPerSec    float64 `json:"blocks_per_sec"`
	MBPerSec        float64 `json:"mb_per_sec"`
	KBPerTransfer   float64 `json:"kb_per_transfer"`
	MsPerTransfer   float64 `json:"ms_per_transfer"`
}

// DeviceMetrics is one device's derived I/O statistics for one interval.
type DeviceMetrics struct {
	NodeID        string `json:"node_id"`
	Device        string `json:"device"`
	Rank          uint32 `json:"rank"`
	TimestampUnix int64  `json:"timestamp_unix"`

	QueueLength     uint32  `json:"queue_length"`
	BusyPct         float64 `json:"busy_pct"`
	BusyTimeSeconds float64 `json:"busy_time_seconds"`

	Read  ClassMetrics `json:"read"`
	Write ClassMetrics `json:"write"`
	Free  ClassMetrics `json:"free"`
	Other ClassMetrics `json:"other"`
	Total ClassMetrics `json:"total"`
}
