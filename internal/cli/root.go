// Package cli implements the nearby command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mohammed-shakir/bikeways-nearby/internal/core/config"
	"github.com/mohammed-shakir/bikeways-nearby/internal/logger"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Nearby bike amenities around a point in the GTA",
	Long: `nearby finds bike shops, bike parking and bike share stations inside a
buffer around a clicked point, and reads the current weather for it.

It runs either as an HTTP service driving map search sessions (serve) or
as a one-shot search (search).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-console", false, "Human readable logs instead of JSON")
	pf.String("redis-addr", "", "Redis address for the shared dataset cache (empty: memory only)")
	pf.String("shops-url", "", "Bike shop GeoJSON URL")
	pf.String("parking-urls", "", "Parking GeoJSON URLs as municipality=url,...")
	pf.String("stations-url", "", "GBFS station_information URL")
	pf.String("station-status-url", "", "GBFS station_status URL")
	pf.String("weather-url", "", "Open-Meteo forecast URL")
	pf.String("weather-tz", "", "Time zone for the weather bucket")
	pf.String("radius-unit", "", "Radius unit (kilometers, degrees)")
	pf.Duration("fetch-timeout", 0, "Per-attempt timeout for remote fetches")
	pf.Int("fetch-retries", -1, "Retries per remote fetch")

	for _, name := range []string{
		"log-level", "log-console", "redis-addr", "shops-url", "parking-urls",
		"stations-url", "station-status-url", "weather-url", "weather-tz",
		"radius-unit", "fetch-timeout", "fetch-retries",
	} {
		if err := viper.BindPFlag(name, pf.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	_ = godotenv.Load()

	viper.SetEnvPrefix("NEARBY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfig starts from the plain environment and applies any NEARBY_*
// variable or flag that was set explicitly.
func loadConfig() config.Config {
	cfg := config.FromEnv()
	cfg.Version = Version

	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			if v := strings.TrimSpace(viper.GetString(key)); v != "" {
				*dst = v
			}
		}
	}
	setString("log-level", &cfg.LogLevel)
	setString("redis-addr", &cfg.RedisAddr)
	setString("shops-url", &cfg.ShopsURL)
	setString("stations-url", &cfg.StationsURL)
	setString("station-status-url", &cfg.StationStatusURL)
	setString("weather-url", &cfg.WeatherURL)
	setString("weather-tz", &cfg.WeatherTZ)
	setString("radius-unit", &cfg.RadiusUnit)
	setString("serve.addr", &cfg.Addr)
	setString("serve.kafka-brokers", &cfg.Events.Brokers)

	if viper.IsSet("parking-urls") {
		if m := config.ParseStringMap(viper.GetString("parking-urls")); len(m) > 0 {
			cfg.ParkingURLs = m
		}
	}
	if d := viper.GetDuration("fetch-timeout"); d > 0 {
		cfg.FetchTimeout = d
	}
	if n := viper.GetInt("fetch-retries"); viper.IsSet("fetch-retries") && n >= 0 {
		cfg.FetchRetries = n
	}
	if viper.IsSet("serve.events") {
		cfg.Events.Enabled = viper.GetBool("serve.events")
	}
	if viper.IsSet("serve.invalidation") {
		cfg.Invalidation.Enabled = viper.GetBool("serve.invalidation")
	}
	return cfg
}

func newLogger(cfg config.Config, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   viper.GetBool("log-console"),
		Component: "nearby",
	}, out)
	return logger.NewSlog(&zl)
}
