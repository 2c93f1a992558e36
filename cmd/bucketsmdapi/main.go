package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/bucketsmdapi/pkg/config"
	"github.com/cuemby/bucketsmdapi/pkg/dispatch"
	"github.com/cuemby/bucketsmdapi/pkg/health"
	"github.com/cuemby/bucketsmdapi/pkg/log"
	"github.com/cuemby/bucketsmdapi/pkg/metrics"
	"github.com/cuemby/bucketsmdapi/pkg/pg"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "bucketsmdapi",
	Short:   "bucketsmdapi - metadata API for a buckets-based object store",
	Long:    `bucketsmdapi accepts the Fast RPC protocol over TCP and persists bucket/object metadata in a vnode-sharded Postgres cluster.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"bucketsmdapi version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("listen-host", "", "Fast protocol listen host")
	rootCmd.PersistentFlags().Int("listen-port", 0, "Fast protocol listen port")
	rootCmd.PersistentFlags().String("metrics-host", "", "Metrics/health HTTP listen host")
	rootCmd.PersistentFlags().Int("metrics-port", 0, "Metrics/health HTTP listen port")
	rootCmd.PersistentFlags().Duration("claim-timeout", 0, "Connection pool claim timeout")
	rootCmd.PersistentFlags().String("datacenter", "", "Datacenter label for metrics")
	rootCmd.PersistentFlags().String("service-name", "", "Service name label for metrics")
	rootCmd.PersistentFlags().String("server-name", "", "Server name label for metrics")
	rootCmd.PersistentFlags().String("postgres-dsn", "", "Postgres connection string")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Fast protocol server",
	RunE:  runServe,
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = log.Level(v)
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	if v, _ := flags.GetString("listen-host"); v != "" {
		cfg.ListenHost = v
	}
	if v, _ := flags.GetInt("listen-port"); v != 0 {
		cfg.ListenPort = v
	}
	if v, _ := flags.GetString("metrics-host"); v != "" {
		cfg.MetricsHost = v
	}
	if v, _ := flags.GetInt("metrics-port"); v != 0 {
		cfg.MetricsPort = v
	}
	if v, _ := flags.GetDuration("claim-timeout"); v != 0 {
		cfg.ClaimTimeout = v
	}
	if v, _ := flags.GetString("datacenter"); v != "" {
		cfg.Datacenter = v
	}
	if v, _ := flags.GetString("service-name"); v != "" {
		cfg.ServiceName = v
	}
	if v, _ := flags.GetString("server-name"); v != "" {
		cfg.ServerName = v
	}
	if v, _ := flags.GetString("postgres-dsn"); v != "" {
		cfg.PostgresDSN = v
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	metrics.SetVersion(Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn is required")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres pool: %w", err)
	}
	defer pool.Close()

	server := dispatch.NewServer(pool, cfg.ClaimTimeout)
	if err := server.Start(ctx, cfg.ListenAddr()); err != nil {
		return fmt.Errorf("start fast server: %w", err)
	}
	log.WithComponent("cli").Info().
		Str("address", cfg.ListenAddr()).
		Str("datacenter", cfg.Datacenter).
		Str("server_name", cfg.ServerName).
		Msg("fast server listening")

	poolChecker := health.NewPoolChecker(pool, cfg.ClaimTimeout)
	metrics.RegisterComponent("dispatcher", true, "ready")
	go runHealthLoop(ctx, poolChecker)

	httpErrCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(cfg.MetricsAddr(), mux); err != nil {
			httpErrCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	log.WithComponent("cli").Info().Str("address", cfg.MetricsAddr()).Msg("metrics/health endpoint listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.WithComponent("cli").Info().Msg("received shutdown signal")
	case err := <-httpErrCh:
		log.WithComponent("cli").Error().Err(err).Msg("metrics server failed")
	}

	cancel()
	if err := server.Stop(); err != nil {
		return fmt.Errorf("stop fast server: %w", err)
	}
	log.WithComponent("cli").Info().Msg("shutdown complete")
	return nil
}

// runHealthLoop periodically re-probes the Postgres pool and republishes
// the result so /health and /ready reflect current connectivity rather
// than only the state at startup.
func runHealthLoop(ctx context.Context, checker *health.PoolChecker) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		res := checker.Check(ctx)
		metrics.RegisterComponent("postgres", res.Healthy, res.Message)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
