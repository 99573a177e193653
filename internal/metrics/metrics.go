// Package metrics owns the Prometheus collectors of the service. All methods
// are safe on a nil *Metrics, which is what tests pass around.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	bids          *prometheus.CounterVec
	tenders       *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easybid_bid_submissions_total",
			Help: "Bid submissions by outcome.",
		}, []string{"outcome"}),
		tenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easybid_tender_transitions_total",
			Help: "Tender lifecycle transitions by target state.",
		}, []string{"to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "easybid_notifications_total",
			Help: "Notification events by delivery stage.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.bids, m.tenders, m.notifications,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records RPS, latency and in-flight requests. The path label is
// the chi route pattern, so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		status := strconv.Itoa(code)

		m.httpDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, path, status).Inc()
	})
}

// Bid outcomes.
const (
	BidCreated  = "created"
	BidUpdated  = "updated"
	BidRejected = "rejected"
)

func (m *Metrics) BidSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.bids.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TenderTransition(to string) {
	if m == nil {
		return
	}
	m.tenders.WithLabelValues(to).Inc()
}

// TendersExpired counts tenders closed in bulk by the deadline sweep.
func (m *Metrics) TendersExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tenders.WithLabelValues("Closed").Add(float64(n))
}

// Notification stages.
const (
	NotifyQueued  = "queued"
	NotifyDropped = "dropped"
	NotifyStored  = "stored"
	NotifyMailed  = "mailed"
	NotifyFailed  = "failed"
)

func (m *Metrics) Notification(stage string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(stage).Inc()
}
