package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
)

// Metrics bundles the prometheus collectors of the vitals host.
type Metrics struct {
	BatchesObserved    *prometheus.CounterVec
	EntriesObserved    *prometheus.CounterVec
	EnvelopesSent      *prometheus.CounterVec
	EntriesDropped     *prometheus.CounterVec
	TransportFallbacks *prometheus.CounterVec
	Deliveries         *prometheus.CounterVec
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
	RateLimitDropped   prometheus.Counter
	PageSessions       prometheus.Gauge
}

var _ port.PipelineMetrics = (*Metrics)(nil)

func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_observer_batches_total",
			Help: "Timeline batches delivered to collectors.",
		}, []string{"entry_type"}),
		EntriesObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_observer_entries_total",
			Help: "Timeline entries delivered to collectors.",
		}, []string{"entry_type"}),
		EnvelopesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_envelopes_sent_total",
			Help: "Envelopes handed to a page transport.",
		}, []string{"target"}),
		EntriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_entries_dropped_total",
			Help: "Entries discarded before sending.",
		}, []string{"reason"}),
		TransportFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_transport_fallbacks_total",
			Help: "Messages rerouted to the console because a bridge was missing.",
		}, []string{"target"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_deliveries_total",
			Help: "Envelopes received by the host, by outcome.",
		}, []string{"target", "outcome"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitals_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vitals_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitals_auth_failures_total",
			Help: "Total number of auth failures.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitals_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
		PageSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vitals_page_sessions",
			Help: "Remote page sessions currently connected.",
		}),
	}

	registry.MustRegister(
		m.BatchesObserved,
		m.EntriesObserved,
		m.EnvelopesSent,
		m.EntriesDropped,
		m.TransportFallbacks,
		m.Deliveries,
		m.RequestsTotal,
		m.RequestDurationSec,
		m.AuthFailures,
		m.RateLimitDropped,
		m.PageSessions,
	)

	return m
}

func (m *Metrics) BatchObserved(entryType string, entries int) {
	m.BatchesObserved.WithLabelValues(entryType).Inc()
	m.EntriesObserved.WithLabelValues(entryType).Add(float64(entries))
}

func (m *Metrics) EnvelopeSent(target string) {
	m.EnvelopesSent.WithLabelValues(target).Inc()
}

func (m *Metrics) EntryDropped(reason string, count int) {
	m.EntriesDropped.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) TransportFallback(target string) {
	m.TransportFallbacks.WithLabelValues(target).Inc()
}

func (m *Metrics) DeliveryProcessed(target, outcome string) {
	m.Deliveries.WithLabelValues(target, outcome).Inc()
}

func (m *Metrics) SessionOpened() {
	m.PageSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	m.PageSessions.Dec()
}

// Middleware records request counts and latency per normalized route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/ws", path == "/ws/page", path == "/healthz", path == "/readyz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/vitals/"):
		return "/api/v1/vitals/*"
	case path == "/api/v1" || strings.HasPrefix(path, "/api/v1/"):
		return "/api/v1/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
