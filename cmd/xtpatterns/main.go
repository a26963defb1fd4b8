// Command xtpatterns builds an expected-threat surface from open-data events,
// mines frequent possession patterns and ranks those that lead to shots or
// box entries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/xtpatterns/internal/cache"
	"github.com/danielpatrickdp/xtpatterns/internal/config"
	"github.com/danielpatrickdp/xtpatterns/internal/logging"
	"github.com/danielpatrickdp/xtpatterns/internal/metrics"
	"github.com/danielpatrickdp/xtpatterns/internal/opendata"
	"github.com/danielpatrickdp/xtpatterns/internal/telemetry"
)

var (
	rootCmd = &cobra.Command{
		Use:           "xtpatterns",
		Short:         "Expected-threat surface and possession pattern mining",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd, fetchCmd, serveCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #region app

// app holds what every subcommand needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	shutdown func(context.Context) error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Trace.Enabled
	tc.ServiceName = cfg.Trace.Service
	tc.Writer = os.Stderr
	shutdown, err := telemetry.Init(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	return &app{cfg: cfg, logger: logger, metrics: metrics.New(), shutdown: shutdown}, nil
}

func (a *app) close() {
	if err := a.shutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown", "error", err)
	}
}

// client opens the document cache and returns a cached open-data client.
// The caller closes the cache.
func (a *app) client() (*opendata.Client, *cache.Cache, error) {
	cc := a.cfg.CacheConfig()
	cc.Logger = a.logger.With("component", "badger")
	c, err := cache.Open(cc)
	if err != nil {
		return nil, nil, err
	}
	cl := opendata.New(a.cfg.OpenDataConfig(),
		opendata.WithCache(c),
		opendata.WithLogger(a.logger.With("component", "opendata")),
		opendata.WithMetrics(a.metrics),
	)
	return cl, c, nil
}

// #endregion app
