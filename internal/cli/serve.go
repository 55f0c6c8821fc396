package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mohammed-shakir/bikeways-nearby/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search session HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default from ADDR or :8090)")
	serveCmd.Flags().Bool("events", false, "Publish finished searches to Kafka")
	serveCmd.Flags().String("kafka-brokers", "", "Comma separated Kafka brokers")
	serveCmd.Flags().Bool("invalidation", false, "Consume dataset update notifications from Kafka")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("serve.addr", "addr")
	mustBind("serve.events", "events")
	mustBind("serve.kafka-brokers", "kafka-brokers")
	mustBind("serve.invalidation", "invalidation")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	log := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting nearby",
		"addr", cfg.Addr,
		"version", Version,
		"radius_unit", cfg.RadiusUnit,
		"redis", cfg.RedisAddr != "",
		"events", cfg.Events.Enabled,
		"invalidation", cfg.Invalidation.Enabled)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	if err := a.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info("server stopped")
	return nil
}
