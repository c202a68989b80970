package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jelu/lim-plugin-orr/pkg/config"
	"github.com/jelu/lim-plugin-orr/pkg/events"
	"github.com/jelu/lim-plugin-orr/pkg/log"
	"github.com/jelu/lim-plugin-orr/pkg/store"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orrd",
	Short:   "orrd runs the OpenDNSSEC Redundancy Robot control plane",
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("orrd version %s\nCommit: %s\n", Version, Commit))
	rootCmd.Flags().String("config", "orrd.yaml", "Path to YAML config")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSONOutput})
	logger := log.WithComponent("orrd").Logger()

	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	evLog := newEventLogger(broker)
	evLog.start()
	defer evLog.stop()

	sup, err := newSupervisor(st, broker, cfg)
	if err != nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	if err := sup.reload(ctx); err != nil {
		return fmt.Errorf("initial cluster load: %w", err)
	}
	sup.startAll()
	defer sup.stopAll()

	hs := newHealthServer(sup, cfg.Server.MetricsAddr, cfg.Server.HealthAddr)
	errCh := make(chan error, 2)
	hs.start(errCh)
	defer hs.shutdown(context.Background())

	logger.Info().
		Str("metrics_addr", cfg.Server.MetricsAddr).
		Str("health_addr", cfg.Server.HealthAddr).
		Int("clusters", sup.count()).
		Msg("orrd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error, shutting down")
	}

	return nil
}
