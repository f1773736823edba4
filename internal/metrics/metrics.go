package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound calls to geolocation providers.
	GeoProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_provider_requests_total",
			Help: "Total number of geolocation provider requests (by provider and result).",
		},
		[]string{"provider", "result"}, // ok | http_error | decode_error | invalid | network_error | rate_limited
	)

	GeoProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_provider_request_duration_seconds",
			Help:    "Duration of geolocation provider requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms → ~5s
		},
		[]string{"provider"},
	)

	// Tracks geo cache reads.
	GeoCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_cache_access_total",
			Help: "Number of geo cache reads by result.",
		},
		[]string{"result"}, // hit | miss | stale
	)

	// Tracks full lookups that fell back to stale or default data.
	GeoFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_fallbacks_total",
			Help: "Geo lookups answered from stale cache or the default market after all providers failed.",
		},
		[]string{"source"}, // stale | default
	)

	// Tracks how markets were resolved for requested paths.
	MarketResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_resolutions_total",
			Help: "Market resolutions by source and market code.",
		},
		[]string{"source", "market"},
	)

	// Tracks rotation page changes per surface.
	RotationAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rotation_advances_total",
			Help: "Rotation page changes by surface and cause.",
		},
		[]string{"surface", "cause"}, // auto | manual | reset
	)

	// Tracks published event counts by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"},
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locale_engine_errors_total",
			Help: "Count of engine-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful geo refresh time (seconds since epoch).
	LastGeoRefresh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geo_last_refresh_timestamp",
			Help: "Timestamp (unix seconds) of the last successful geolocation lookup.",
		},
	)
)

// ObserveDuration records the time taken since start on the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncProviderRequest(provider, result string) {
	GeoProviderRequests.WithLabelValues(provider, result).Inc()
}

func IncCacheAccess(result string) {
	GeoCacheAccess.WithLabelValues(result).Inc()
}

func IncFallback(source string) {
	GeoFallbacks.WithLabelValues(source).Inc()
}

func IncResolution(source, market string) {
	MarketResolutions.WithLabelValues(source, market).Inc()
}

func IncRotation(surface, cause string) {
	RotationAdvances.WithLabelValues(surface, cause).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastGeoRefresh(t time.Time) {
	LastGeoRefresh.Set(float64(t.Unix()))
}
