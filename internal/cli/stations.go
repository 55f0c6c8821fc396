package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/bikeways-nearby/internal/app"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Load the bike share station set and report its size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig()
		cfg.Events.Enabled = false
		log := newLogger(cfg, cmd.ErrOrStderr())

		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		defer func() { _ = a.Close() }()

		if err := a.Stations.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("load stations: %w", err)
		}
		_, detail := a.Stations.Readiness()
		fmt.Fprintf(cmd.OutOrStdout(), "stations: %d (loaded %s)\n",
			detail["stations"], a.Stations.LoadedAt().Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}
