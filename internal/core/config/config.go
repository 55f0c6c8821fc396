package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

// InvalidationCfg drives the dataset update consumer; it shares the
// broker list with EventsCfg.
type InvalidationCfg struct {
	Enabled bool
	Topic   string
	GroupID string
}

type ViewCfg struct {
	CenterLon float64
	CenterLat float64
	Zoom      float64
	Bearing   float64
}

type Config struct {
	// Version is stamped by the binary, not read from the environment.
	Version  string
	Addr     string
	LogLevel string

	RedisAddr      string
	DatasetTTL     time.Duration
	DatasetLRUSize int
	CacheOpTimeout time.Duration

	FetchTimeout time.Duration
	FetchRetries int

	ShopsURL         string
	ParkingURLs      map[string]string
	BikewayURLs      map[string]string
	StationsURL      string
	StationStatusURL string
	StationsRefresh  time.Duration

	WeatherURL string
	WeatherTZ  string

	RadiusMin   float64
	RadiusMax   float64
	RadiusUnit  string
	BufferSteps int
	H3Res       int

	ClickDebounce  time.Duration
	RadiusDebounce time.Duration
	SelectDebounce time.Duration
	SelectZoom     float64
	DefaultView    ViewCfg

	SessionIdleTTL time.Duration

	Events       EventsCfg
	Invalidation InvalidationCfg
}

const (
	defaultShopsURL    = "https://ireo00.github.io/472-Resources/toronto_bicycle_shops.geojson"
	defaultParkingURLs = "toronto=https://anamariiaz.github.io/GGR472-Group-Project-Sources/toronto_bicycle_parking.geojson"
	defaultBikewayURLs = "toronto=https://anamariiaz.github.io/GGR472-Group-Project-Sources/toronto_cycling_network.geojson," +
		"york=https://anamariiaz.github.io/GGR472-Group-Project-Sources/york_region_cycling_network.geojson," +
		"peel=https://ireo00.github.io/472-Resources/peel_region_cycling_network.geojson," +
		"durham=https://ireo00.github.io/472-Resources/durham_region_cycling_network.geojson," +
		"burlington=https://ireo00.github.io/472-Resources/burlington_cycling_network.geojson," +
		"milton=https://ireo00.github.io/472-Resources/milton_cycling_network.geojson," +
		"oakville=https://ireo00.github.io/472-Resources/oakville_cycling_network.geojson," +
		"ajax=https://janicewg.github.io/GGR472-Data-Group-Project/Active_Transportation.geojson," +
		"whitby=https://janicewg.github.io/GGR472-Data-Group-Project/Whitby_cycling_routes.geojson"
	defaultStationsURL = "https://tor.publicbikesystem.net/ube/gbfs/v1/en/station_information"
	defaultStatusURL   = "https://tor.publicbikesystem.net/ube/gbfs/v1/en/station_status"
	defaultWeatherURL  = "https://api.open-meteo.com/v1/forecast"
)

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 0 || res > 15 {
		res = 8
	}

	rmin := getfloat("RADIUS_MIN", 0)
	rmax := getfloat("RADIUS_MAX", 10)
	if rmax <= rmin {
		rmin, rmax = 0, 10
	}

	steps := getint("BUFFER_STEPS", 64)
	if steps < 8 {
		steps = 8
	}

	lon, lat := parseCenter(getenv("DEFAULT_CENTER", "-79.3,43.765"))

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:      getenv("REDIS_ADDR", ""),
		DatasetTTL:     getduration("DATASET_TTL", 10*time.Minute),
		DatasetLRUSize: getint("DATASET_LRU_SIZE", 32),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

		FetchTimeout: getduration("FETCH_TIMEOUT", 10*time.Second),
		FetchRetries: getint("FETCH_RETRIES", 3),

		ShopsURL:         getenv("SHOPS_URL", defaultShopsURL),
		ParkingURLs:      ParseStringMap(getenv("PARKING_URLS", defaultParkingURLs)),
		BikewayURLs:      ParseStringMap(getenv("BIKEWAY_URLS", defaultBikewayURLs)),
		StationsURL:      getenv("STATIONS_URL", defaultStationsURL),
		StationStatusURL: getenv("STATION_STATUS_URL", defaultStatusURL),
		StationsRefresh:  getduration("STATIONS_REFRESH", 5*time.Minute),

		WeatherURL: getenv("WEATHER_URL", defaultWeatherURL),
		WeatherTZ:  getenv("WEATHER_TZ", "America/Toronto"),

		RadiusMin:   rmin,
		RadiusMax:   rmax,
		RadiusUnit:  strings.ToLower(getenv("RADIUS_UNIT", "kilometers")),
		BufferSteps: steps,
		H3Res:       res,

		ClickDebounce:  getduration("CLICK_DEBOUNCE", 500*time.Millisecond),
		RadiusDebounce: getduration("RADIUS_DEBOUNCE", 900*time.Millisecond),
		SelectDebounce: getduration("SELECT_DEBOUNCE", 600*time.Millisecond),
		SelectZoom:     getfloat("SELECT_ZOOM", 16),
		DefaultView: ViewCfg{
			CenterLon: lon,
			CenterLat: lat,
			Zoom:      getfloat("DEFAULT_ZOOM", 8.65),
			Bearing:   getfloat("DEFAULT_BEARING", -17.7),
		},

		SessionIdleTTL: getduration("SESSION_IDLE_TTL", 30*time.Minute),

		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "nearby-searches"),
			Queue:   getint("EVENTS_QUEUE", 1024),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("INVALIDATION_TOPIC", "dataset-updates"),
			GroupID: getenv("INVALIDATION_GROUP_ID", "nearby-invalidator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// ParseStringMap parses "toronto=https://a,york=https://b"; keys are lowercased.
func ParseStringMap(s string) map[string]string {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(kv[1])
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// "lon,lat"; falls back to the GTA default on any parse problem
func parseCenter(s string) (float64, float64) {
	const defLon, defLat = -79.3, 43.765
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return defLon, defLat
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return defLon, defLat
	}
	return lon, lat
}
