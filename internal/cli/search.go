package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/bikeways-nearby/internal/app"
	"github.com/mohammed-shakir/bikeways-nearby/internal/workflow"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one nearby search and print the results as JSON",
	Example: `  nearby search --lon -79.38 --lat 43.65 --radius 0.5
  nearby search --lon -79.38 --lat 43.65 --radius 1 --weather`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64("lon", 0, "Longitude of the search point")
	searchCmd.Flags().Float64("lat", 0, "Latitude of the search point")
	searchCmd.Flags().Float64("radius", 0.5, "Buffer radius")
	searchCmd.Flags().Bool("weather", false, "Wait for the weather readings")
	searchCmd.Flags().Duration("timeout", time.Minute, "Overall time limit")
	_ = searchCmd.MarkFlagRequired("lon")
	_ = searchCmd.MarkFlagRequired("lat")
}

func runSearch(cmd *cobra.Command, _ []string) error {
	lon, _ := cmd.Flags().GetFloat64("lon")
	lat, _ := cmd.Flags().GetFloat64("lat")
	radius, _ := cmd.Flags().GetFloat64("radius")
	withWeather, _ := cmd.Flags().GetBool("weather")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg := loadConfig()
	cfg.Events.Enabled = false
	log := newLogger(cfg, cmd.ErrOrStderr())

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Stations.Refresh(ctx); err != nil {
		log.Error("bike share stations unavailable", "err", err)
	}

	snap, err := search(ctx, a.Sessions, orb.Point{lon, lat}, radius, withWeather)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), snap)
}

func search(ctx context.Context, m *workflow.Manager, pt orb.Point, radius float64, withWeather bool) (workflow.Snapshot, error) {
	s := m.Create()
	defer func() { _ = m.Delete(s.ID()) }()

	if _, err := s.RecordClick(pt); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("click: %w", err)
	}
	if _, err := s.UpdateRadius(radius); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("radius: %w", err)
	}
	if err := s.Wait(ctx); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("search: %w", err)
	}
	if withWeather {
		if err := s.WaitWeather(ctx); err != nil {
			return workflow.Snapshot{}, fmt.Errorf("weather: %w", err)
		}
	}
	return s.Snapshot(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
