package observability

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	upstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Failed upstream calls by error kind.",
		},
		[]string{"upstream", "kind"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nearby_stage_duration_seconds",
			Help:    "Duration of aggregation chain stages.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"stage", "outcome"},
	)

	debouncedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearby_debounced_total",
			Help: "Events ignored by a debounce gate.",
		},
		[]string{"op"},
	)

	radiusDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nearby_radius_dropped_total",
			Help: "Radius updates dropped because an aggregation pass was in flight.",
		},
	)

	resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearby_results_total",
			Help: "Result entries produced by kind.",
		},
		[]string{"kind"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nearby_active_sessions",
			Help: "Number of live search sessions.",
		},
	)

	datasetCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_cache_results_total",
			Help: "Dataset cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	redisOpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearby_invalidations_total",
			Help: "Dataset update notifications by outcome.",
		},
		[]string{"dataset", "outcome"},
	)

	invalidationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearby_invalidation_duration_seconds",
			Help:    "Time to apply one dataset update notification.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nearby_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		upstreamErrorsTotal,
		stageDurationSeconds,
		debouncedTotal,
		radiusDroppedTotal,
		resultsTotal,
		activeSessions,
		datasetCacheTotal,
		redisOpDurationSeconds,
		invalidationsTotal,
		invalidationDurationSeconds,
		buildInfo,
	}
}

func init() {
	mustRegister(prometheus.DefaultRegisterer)
}

// Init registers all collectors on reg; a nil reg or enabled=false is a no-op.
// Registering twice is fine; a conflicting collector already on reg panics,
// as with prometheus.MustRegister.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	mustRegister(reg)
}

func mustRegister(reg prometheus.Registerer) {
	if err := register(reg); err != nil {
		panic(fmt.Errorf("register metrics: %w", err))
	}
}

func register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncUpstreamError(upstream, kind string) {
	upstreamErrorsTotal.WithLabelValues(upstream, kind).Inc()
}

func ObserveStage(stage, outcome string, durationSeconds float64) {
	stageDurationSeconds.WithLabelValues(stage, outcome).Observe(durationSeconds)
}

func IncDebounced(op string) {
	debouncedTotal.WithLabelValues(op).Inc()
}

func IncRadiusDropped() {
	radiusDroppedTotal.Inc()
}

func AddResults(kind string, n int) {
	if n <= 0 {
		return
	}
	resultsTotal.WithLabelValues(kind).Add(float64(n))
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func IncDatasetCache(tier, outcome string) {
	datasetCacheTotal.WithLabelValues(tier, outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	redisOpDurationSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}

func ObserveInvalidation(dataset, outcome string, durationSeconds float64) {
	invalidationsTotal.WithLabelValues(dataset, outcome).Inc()
	invalidationDurationSeconds.Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
