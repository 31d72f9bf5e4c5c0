package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"

	"geomstat-agent/internal/config"
)

// NewSinkFromConfig builds the metrics sink selected by the stream mode.
// The stdout sink renders a live table and never dials anywhere, so the
// TLS configuration is only consulted for the network modes.
func NewSinkFromConfig(cfg config.Config, tlsCfg *tls.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.StreamMode {
	case config.StreamModeGRPC:
		return NewGRPCClient(
			cfg.BackendGRPCAddr,
			tlsCfg,
			cfg.BackendToken,
			cfg.GRPCDeviceStreamMethod,
			logger,
		), nil
	case config.StreamModeWebSocket:
		return NewWebSocketClient(
			cfg.BackendWSURL,
			cfg.BackendToken,
			tlsCfg,
			cfg.WebSocketWriteTimeout,
			cfg.WebSocketPingInterval,
			logger,
		), nil
	case config.StreamModeStdout:
		return NewTableSink(os.Stdout, Columns{
			Delete: cfg.ShowDelete,
			Other:  cfg.ShowOther,
			Size:   cfg.ShowSize,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported stream mode %q", cfg.StreamMode)
	}
}
