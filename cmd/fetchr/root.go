package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetchr"
	"github.com/adamwoolhether/fetchr/backend/httpbase"
)

// app holds the state shared by the subcommands.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	cfgPath  string
	cfg      Config
	log      *slog.Logger
	closeLog func() error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "fetchr",
		Short:         "fetchr - download files through a chain of transport backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.cfgPath, c.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg

			a.log, a.closeLog, err = newLogger(cfg.Log, a.stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(a.log)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog == nil {
				return nil
			}
			return a.closeLog()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "YAML config file")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-file", "", "write JSON logs to this rotated file instead of stderr")

	cmd.AddCommand(
		a.newGetCmd(),
		a.newBackendsCmd(),
		a.newProxyCmd(),
	)

	return cmd
}

// newDownloader builds a Downloader from the loaded config. The returned
// registry is nil unless a metrics textfile was requested.
func (a *app) newDownloader(logProgress bool) (*fetchr.Downloader, *prometheus.Registry, error) {
	opts := []fetchr.Option{
		fetchr.WithLogger(a.log),
		fetchr.WithLimits(httpbase.Limits{
			ConnectTimeout: a.cfg.Limits.ConnectTimeout,
			LowSpeedLimit:  a.cfg.Limits.LowSpeedLimit,
			LowSpeedTime:   a.cfg.Limits.LowSpeedTime,
		}),
	}

	if a.cfg.Throttle.RPS > 0 {
		opts = append(opts, fetchr.WithThrottle(a.cfg.Throttle.RPS, a.cfg.Throttle.Burst))
	}
	if logProgress {
		opts = append(opts, fetchr.WithProgress())
	}

	var reg *prometheus.Registry
	if a.cfg.Metrics.Textfile != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, fetchr.WithMetrics(reg))
	}

	d, err := fetchr.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building downloader: %w", err)
	}
	return d, reg, nil
}
