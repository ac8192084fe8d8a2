package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "user_weather_hub"

// Metrics holds the Prometheus collectors shared by the API, the NWS provider and the caches.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: method, route, status
	HTTPDuration *prometheus.HistogramVec // labels: method, route

	NWSRequests *prometheus.CounterVec   // labels: endpoint={zones,forecast}, outcome={success,error,not_found}
	NWSDuration *prometheus.HistogramVec // labels: endpoint

	CacheLookups *prometheus.CounterVec // labels: cache={zones,forecasts}, result={hit,miss}
	CacheEntries *prometheus.GaugeVec   // labels: cache

	UsersCreated    prometheus.Counter
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates all collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		NWSRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nws_requests_total",
			Help:      "National Weather Service API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		NWSDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nws_request_duration_seconds",
			Help:      "National Weather Service API call duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Weather cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held by each weather cache.",
		}, []string{"cache"}),
		UsersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_created_total",
			Help:      "Users registered through the API.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "User events handed to the event stream by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.NWSRequests,
		m.NWSDuration,
		m.CacheLookups,
		m.CacheEntries,
		m.UsersCreated,
		m.EventsPublished,
	)

	return m
}
