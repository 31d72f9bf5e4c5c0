package stream

import (
	"encoding/json"
	"time"

	"geomstat-agent/internal/model"
)

type Sink interface {
	SendDeviceMetrics(ctx Context, metrics []model.DeviceMetrics) error
	Close(ctx Context) error
}

type Context interface {
	Done() <-chan struct{}
	Err() error
	Deadline() (time.Time, bool)
	Value(key any) any
}

// DeviceFrame is the on-the-wire batch shape for one collection cycle.
type DeviceFrame struct {
	NodeID        string                `json:"node_id"`
	TimestampUnix int64                 `json:"timestamp_unix"`
	Metrics       []model.DeviceMetrics `json:"metrics"`
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func NewDeviceFrame(metrics []model.DeviceMetrics) DeviceFrame {
	nodeID := ""
	at := time.Now().UTC().Unix()
	if len(metrics) > 0 {
		nodeID = metrics[0].NodeID
		at = metrics[0].TimestampUnix
	}
	return DeviceFrame{NodeID: nodeID, TimestampUnix: at, Metrics: metrics}
}
