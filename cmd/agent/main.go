// Command agent samples per-device block I/O counters and publishes the
// derived statistics as a live table, a metrics stream, or a Prometheus
// scrape endpoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"geomstat-agent/internal/agent"
	"geomstat-agent/internal/config"
)

const appName = "geomstat-agent"

func newApp() *cli.App {
	return &cli.App{
		Name:      appName,
		Usage:     "per-device block storage I/O statistics agent",
		Version:   config.HardcodedVersion,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Action:    appMain,

		// Environment (GEOMSTAT_*) supplies the defaults; flags override.
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "source",
				Usage: "counter source: devstat or libvirt",
			},
			cli.StringFlag{
				Name:  "libvirt-uri",
				Usage: "libvirt connection URI for the libvirt source",
			},
			cli.DurationFlag{
				Name:  "interval, I",
				Usage: "seconds between collection cycles",
			},
			cli.StringFlag{
				Name:  "filter, f",
				Usage: "only report devices whose name matches the regexp",
			},
			cli.StringFlag{
				Name:  "exclude",
				Usage: "drop devices whose name matches the regexp",
			},
			cli.BoolFlag{
				Name:  "physical, p",
				Usage: "only report physical providers (rank 1)",
			},
			cli.BoolFlag{
				Name:  "auto, a",
				Usage: "only report devices at least 0.1% busy",
			},
			cli.BoolFlag{
				Name:  "delete, d",
				Usage: "show delete (BIO_DELETE) columns in table mode",
			},
			cli.BoolFlag{
				Name:  "other, o",
				Usage: "show other (BIO_FLUSH etc.) columns in table mode",
			},
			cli.BoolFlag{
				Name:  "size, s",
				Usage: "show per-transfer size columns in table mode",
			},
			cli.StringFlag{
				Name:  "stream-mode",
				Usage: "metrics destination: stdout, grpc, or websocket",
			},
			cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "listen address for the Prometheus scrape endpoint",
			},
			cli.StringFlag{
				Name:  "probe-addr",
				Usage: "listen address for the TCP liveness probe",
			},
			cli.StringFlag{
				Name:  "log-level",
				Usage: "log level: debug, info, warn, or error",
			},
		},
	}
}

func appMain(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := agent.BuildLogger(cfg)
	a, err := agent.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("agent initialization failed", "error", err)
		return err
	}

	if err := a.Run(context.Background()); err != nil {
		logger.Error("agent runtime failed", "error", err)
		return err
	}
	return nil
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if v := c.String("source"); v != "" {
		cfg.Source = config.SourceKind(v)
	}
	if v := c.String("libvirt-uri"); v != "" {
		cfg.LibvirtURI = v
	}
	if v := c.Duration("interval"); v > 0 {
		cfg.PollInterval = v
	}
	if v := c.String("filter"); v != "" {
		cfg.IncludeFilter = v
	}
	if v := c.String("exclude"); v != "" {
		cfg.ExcludeFilter = v
	}
	if c.Bool("physical") {
		cfg.PhysicalOnly = true
	}
	if c.Bool("auto") {
		cfg.AutoOnly = true
	}
	if c.Bool("delete") {
		cfg.ShowDelete = true
	}
	if c.Bool("other") {
		cfg.ShowOther = true
	}
	if c.Bool("size") {
		cfg.ShowSize = true
	}
	if v := c.String("stream-mode"); v != "" {
		cfg.StreamMode = config.StreamMode(v)
	}
	if v := c.String("metrics-addr"); v != "" {
		cfg.MetricsListenAddr = v
	}
	if v := c.String("probe-addr"); v != "" {
		cfg.ProbeListenAddr = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
