package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type StreamMode string

const (
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeWebSocket StreamMode = "websocket"
	StreamModeStdout    StreamMode = "stdout"
	HardcodedVersion    string     = "V0.3"
)

type SourceKind string

const (
	SourceDevstat SourceKind = "devstat"
	SourceLibvirt SourceKind = "libvirt"
)

type Config struct {
	NodeID   string
	Hostname string

	Source     SourceKind
	LibvirtURI string

	ProbeListenAddr   string
	MetricsListenAddr string

	PollInterval          time.Duration
	HealthInterval        time.Duration
	ReconnectInterval     time.Duration
	MaxReconnectJitter    time.Duration
	ShutdownTimeout       time.Duration
	CollectorErrorBackoff time.Duration

	StreamMode             StreamMode
	BackendGRPCAddr        string
	BackendWSURL           string
	BackendToken           string
	GRPCDeviceStreamMethod string
	WebSocketWriteTimeout  time.Duration
	WebSocketReadTimeout   time.Duration
	WebSocketPingInterval  time.Duration
	StreamBufferSize       int

	IncludeFilter string
	ExcludeFilter string
	PhysicalOnly  bool
	AutoOnly      bool
	ShowDelete    bool
	ShowOther     bool
	ShowSize      bool

	AgentVersion  string
	TLSEnabled    bool
	TLSSkipVerify bool
	TLSCAPath     string
	TLSCertPath   string
	TLSKeyPath    string
	LogJSON       bool
	LogLevel      string
}

func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	cfg := Config{
		NodeID:   env("GEOMSTAT_NODE_ID", hostname),
		Hostname: hostname,

		Source:     SourceKind(strings.ToLower(env("GEOMSTAT_SOURCE", string(SourceDevstat)))),
		LibvirtURI: env("GEOMSTAT_LIBVIRT_URI", "qemu+unix:///system"),

		ProbeListenAddr:   env("GEOMSTAT_PROBE_ADDR", "0.0.0.0:7446"),
		MetricsListenAddr: env("GEOMSTAT_METRICS_ADDR", "0.0.0.0:9248"),

		PollInterval:          envDuration("GEOMSTAT_POLL_INTERVAL", 1*time.Second),
		HealthInterval:        envDuration("GEOMSTAT_HEALTH_INTERVAL", 10*time.Second),
		ReconnectInterval:     envDuration("GEOMSTAT_RECONNECT_INTERVAL", 4*time.Second),
		MaxReconnectJitter:    envDuration("GEOMSTAT_RECONNECT_MAX_JITTER", 900*time.Millisecond),
		ShutdownTimeout:       envDuration("GEOMSTAT_SHUTDOWN_TIMEOUT", 20*time.Second),
		CollectorErrorBackoff: envDuration("GEOMSTAT_COLLECTOR_ERROR_BACKOFF", 1500*time.Millisecond),

		StreamMode:             StreamMode(strings.ToLower(env("GEOMSTAT_STREAM_MODE", string(StreamModeStdout)))),
		BackendGRPCAddr:        env("GEOMSTAT_BACKEND_GRPC_ADDR", "127.0.0.1:3001"),
		BackendWSURL:           env("GEOMSTAT_BACKEND_WS_URL", "ws://127.0.0.1:3001/ws/metrics"),
		BackendToken:           env("GEOMSTAT_BACKEND_TOKEN", ""),
		GRPCDeviceStreamMethod: env("GEOMSTAT_GRPC_DEVICE_STREAM_METHOD", "/geomstat.metrics.v1.MetricsService/StreamDeviceMetrics"),
		WebSocketWriteTimeout:  envDuration("GEOMSTAT_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketReadTimeout:   envDuration("GEOMSTAT_WS_READ_TIMEOUT", 15*time.Second),
		WebSocketPingInterval:  envDuration("GEOMSTAT_WS_PING_INTERVAL", 10*time.Second),
		StreamBufferSize:       envInt("GEOMSTAT_STREAM_BUFFER_SIZE", 1024),

		IncludeFilter: env("GEOMSTAT_INCLUDE", ""),
		ExcludeFilter: env("GEOMSTAT_EXCLUDE", ""),
		PhysicalOnly:  envBool("GEOMSTAT_PHYSICAL_ONLY", false),
		AutoOnly:      envBool("GEOMSTAT_AUTO_ONLY", false),
		ShowDelete:    envBool("GEOMSTAT_SHOW_DELETE", false),
		ShowOther:     envBool("GEOMSTAT_SHOW_OTHER", false),
		ShowSize:      envBool("GEOMSTAT_SHOW_SIZE", false),

		AgentVersion:  HardcodedVersion,
		TLSEnabled:    envBool("GEOMSTAT_TLS_ENABLED", false),
		TLSSkipVerify: envBool("GEOMSTAT_TLS_SKIP_VERIFY", false),
		TLSCAPath:     env("GEOMSTAT_TLS_CA_PATH", ""),
		TLSCertPath:   env("GEOMSTAT_TLS_CERT_PATH", ""),
		TLSKeyPath:    env("GEOMSTAT_TLS_KEY_PATH", ""),
		LogJSON:       envBool("GEOMSTAT_LOG_JSON", false),
		LogLevel:      strings.ToLower(env("GEOMSTAT_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("GEOMSTAT_NODE_ID is required")
	}
	switch c.Source {
	case SourceDevstat, SourceLibvirt:
	default:
		return fmt.Errorf("unsupported counter source %q", c.Source)
	}
	if c.Source == SourceLibvirt && c.LibvirtURI == "" {
		return errors.New("GEOMSTAT_LIBVIRT_URI is required for the libvirt source")
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("GEOMSTAT_PROBE_ADDR is required")
	}
	if strings.TrimSpace(c.MetricsListenAddr) == "" {
		return errors.New("GEOMSTAT_METRICS_ADDR is required")
	}
	if c.PollInterval <= 0 {
		return errors.New("GEOMSTAT_POLL_INTERVAL must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("GEOMSTAT_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("GEOMSTAT_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.StreamMode {
	case StreamModeGRPC, StreamModeWebSocket, StreamModeStdout:
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.StreamMode == StreamModeGRPC {
		if c.BackendGRPCAddr == "" {
			return errors.New("GEOMSTAT_BACKEND_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCDeviceStreamMethod) == "" {
			return errors.New("GEOMSTAT_GRPC_DEVICE_STREAM_METHOD is required for grpc mode")
		}
	}
	if c.StreamMode == StreamModeWebSocket && c.BackendWSURL == "" {
		return errors.New("GEOMSTAT_BACKEND_WS_URL is required for websocket mode")
	}
	if _, err := c.IncludeRegexp(); err != nil {
		return err
	}
	if _, err := c.ExcludeRegexp(); err != nil {
		return err
	}
	return nil
}

// IncludeRegexp compiles the device include filter; nil when unset.
func (c Config) IncludeRegexp() (*regexp.Regexp, error) {
	return compileFilter("GEOMSTAT_INCLUDE", c.IncludeFilter)
}

// ExcludeRegexp compiles the device exclude filter; nil when unset.
func (c Config) ExcludeRegexp() (*regexp.Regexp, error) {
	return compileFilter("GEOMSTAT_EXCLUDE", c.ExcludeFilter)
}

func compileFilter(key, expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return re, nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
