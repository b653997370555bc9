// Package metrics exposes authentication outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements service.Observer. Each Recorder owns its registry so
// tests can create as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	logins      *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	twoFactor   *prometheus.CounterVec
	purged      *prometheus.CounterVec
	requests    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_total",
				Help: "Sign-in attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_refresh_total",
				Help: "Refresh token rotations by outcome",
			},
			[]string{"outcome"},
		),
		twoFactor: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_two_factor_total",
				Help: "Two-factor verifications by outcome",
			},
			[]string{"outcome"},
		),
		purged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_purged_rows_total",
				Help: "Expired rows deleted by housekeeping",
			},
			[]string{"kind"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		reqDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (r *Recorder) ObserveLogin(outcome string) {
	r.logins.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveRefresh(outcome string) {
	r.refreshes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveTwoFactor(outcome string) {
	r.twoFactor.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObservePurge(kind string, count int64) {
	if count <= 0 {
		return
	}
	r.purged.WithLabelValues(kind).Add(float64(count))
}

func (r *Recorder) ObserveRequest(method string, route string, status string, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, status).Inc()
	r.reqDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
