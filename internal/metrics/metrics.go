// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by middleware and handlers.
type Recorder interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordSignup()
	RecordLogin(success bool)
	RecordRateLimited()
}

// Collector records the service metrics.
type Collector struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	signups     prometheus.Counter
	logins      *prometheus.CounterVec
	rateLimited prometheus.Counter
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newspaper_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newspaper_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspaper_signups_total",
			Help: "Accounts created through the signup form.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newspaper_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newspaper_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(c.requests, c.latency, c.signups, c.logins, c.rateLimited)
	return c
}

// RecordRequest records one served request. route is the matched pattern.
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSignup records a created account.
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin records a login attempt.
func (c *Collector) RecordLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordRateLimited records a rejected request.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordSignup()                                     {}
func (Nop) RecordLogin(bool)                                  {}
func (Nop) RecordRateLimited()                                {}
