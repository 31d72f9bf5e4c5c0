package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, SourceDevstat, cfg.Source)
	require.Equal(t, StreamModeStdout, cfg.StreamMode)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, cfg.Hostname, cfg.NodeID)
	require.False(t, cfg.PhysicalOnly)
	require.False(t, cfg.ShowDelete)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEOMSTAT_NODE_ID", "node-7")
	t.Setenv("GEOMSTAT_SOURCE", "libvirt")
	t.Setenv("GEOMSTAT_STREAM_MODE", "websocket")
	t.Setenv("GEOMSTAT_POLL_INTERVAL", "250ms")
	t.Setenv("GEOMSTAT_PHYSICAL_ONLY", "yes")
	t.Setenv("GEOMSTAT_INCLUDE", "^ada[0-9]+$")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "node-7", cfg.NodeID)
	require.Equal(t, SourceLibvirt, cfg.Source)
	require.Equal(t, StreamModeWebSocket, cfg.StreamMode)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.True(t, cfg.PhysicalOnly)

	re, err := cfg.IncludeRegexp()
	require.NoError(t, err)
	require.NotNil(t, re)
	require.True(t, re.MatchString("ada0"))
	require.False(t, re.MatchString("ada0p1"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty node id", func(c *Config) { c.NodeID = "" }},
		{"unknown source", func(c *Config) { c.Source = "procfs" }},
		{"unknown stream mode", func(c *Config) { c.StreamMode = "udp" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"grpc without addr", func(c *Config) { c.StreamMode = StreamModeGRPC; c.BackendGRPCAddr = "" }},
		{"websocket without url", func(c *Config) { c.StreamMode = StreamModeWebSocket; c.BackendWSURL = "" }},
		{"bad include filter", func(c *Config) { c.IncludeFilter = "(" }},
		{"bad exclude filter", func(c *Config) { c.ExcludeFilter = "[z-a]" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("GEOMSTAT_POLL_INTERVAL", "not-a-duration")
	t.Setenv("GEOMSTAT_PHYSICAL_ONLY", "maybe")
	t.Setenv("GEOMSTAT_STREAM_BUFFER_SIZE", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.False(t, cfg.PhysicalOnly)
	require.Equal(t, 1024, cfg.StreamBufferSize)
}
