// Package obs holds the Prometheus metrics kubarr exports.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry and the collectors registered in it.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	tokensIssued  *prometheus.CounterVec
	grantFailures *prometheus.CounterVec
	purgedRows    *prometheus.CounterVec
}

// New creates the metrics set and registers it, together with the Go and
// process collectors and a build_info gauge, in a fresh registry.
func New(version string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kubarr_http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubarr_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kubarr_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		tokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubarr_oauth_tokens_issued_total",
				Help: "Token pairs issued by the authorization server.",
			},
			[]string{"grant"},
		),
		grantFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubarr_oauth_grant_failures_total",
				Help: "Rejected token endpoint requests.",
			},
			[]string{"reason"},
		),
		purgedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubarr_janitor_purged_total",
				Help: "Expired rows removed by the janitor.",
			},
			[]string{"kind"},
		),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kubarr_build_info",
		Help: "Kubarr build information.",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.tokensIssued,
		m.grantFailures,
		m.purgedRows,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TokenIssued counts a token pair issued for grant.
func (m *Metrics) TokenIssued(grant string) {
	m.tokensIssued.WithLabelValues(grant).Inc()
}

// GrantFailed counts a token endpoint rejection.
func (m *Metrics) GrantFailed(reason string) {
	m.grantFailures.WithLabelValues(reason).Inc()
}

// Purged counts rows removed by the janitor.
func (m *Metrics) Purged(codes, tokens int64) {
	m.purgedRows.WithLabelValues("authorization_code").Add(float64(codes))
	m.purgedRows.WithLabelValues("token").Add(float64(tokens))
}

// Instrument records request count, latency and in-flight requests. Requests
// are labelled with the chi route pattern so path parameters do not explode
// label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.code)

		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
