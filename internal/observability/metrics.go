package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dias"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion
// and alerting.
type Metrics struct {
	// Ingestion.
	FetchResults    *prometheus.CounterVec   // labels: type, outcome={success,failure}
	RecordsUpserted *prometheus.CounterVec   // labels: type, op={insert,update}
	FetchDuration   *prometheus.HistogramVec // labels: type

	// Geocoding.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Alerting.
	AlertsPublished prometheus.Counter
	AlertsFailed    prometheus.Counter
	CycleDuration   prometheus.Histogram
	ProcessedSize   prometheus.Gauge
	ActiveTopics    prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      help("Source fetch runs by disaster type and outcome."),
		}, []string{"type", "outcome"}),
		RecordsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      help("Disaster records written by type and operation."),
		}, []string{"type", "op"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      help("Duration of one source fetch including persistence."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"type"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Reverse geocoding requests by outcome."),
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Reverse geocoding cache lookups by result."),
		}, []string{"result"}),
		AlertsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      help("Alerts published to country topics."),
		}),
		AlertsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_failed_total",
			Help:      help("Alerts whose publish failed."),
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_cycle_duration_seconds",
			Help:      help("Duration of one alert cycle."),
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		ProcessedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processed_disasters",
			Help:      help("Disaster ids already alerted on in this process."),
		}),
		ActiveTopics: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_topics",
			Help:      help("Country topics with at least one active disaster."),
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.FetchResults,
		m.RecordsUpserted,
		m.FetchDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.AlertsPublished,
		m.AlertsFailed,
		m.CycleDuration,
		m.ProcessedSize,
		m.ActiveTopics,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
