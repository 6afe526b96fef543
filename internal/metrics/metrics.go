// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the classification path.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/edumood/internal/feedback"
)

const namespace = "edumood"

// Collector holds all Prometheus metrics for the application. Each Collector
// owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissions      *prometheus.CounterVec
	classifyFailures *prometheus.CounterVec
	classifyDuration prometheus.Histogram
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedback_submissions_total",
				Help:      "Total number of stored feedback records by emotion",
			},
			[]string{"emotion"},
		),
		classifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classification_failures_total",
				Help:      "Total number of failed classifications by reason",
			},
			[]string{"reason"},
		),
		classifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classification_duration_seconds",
				Help:      "Classifier round-trip time in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
		),
	}

	c.registry.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.submissions,
		c.classifyFailures,
		c.classifyDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the exposition format for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveClassification records one classifier call.
func (c *Collector) ObserveClassification(d time.Duration, err error) {
	c.classifyDuration.Observe(d.Seconds())
	if err != nil {
		c.classifyFailures.WithLabelValues(FailureReason(err)).Inc()
	}
}

// RecordSubmission counts a stored record.
func (c *Collector) RecordSubmission(e feedback.Emotion) {
	c.submissions.WithLabelValues(string(e)).Inc()
}

// FailureReason maps a classification error to a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, feedback.ErrClassifierTimeout):
		return "timeout"
	case errors.Is(err, feedback.ErrClassifierUnavailable):
		return "unavailable"
	case errors.Is(err, feedback.ErrInvalidEmotion):
		return "invalid_emotion"
	case errors.Is(err, feedback.ErrMalformedClassification):
		return "malformed"
	default:
		return "other"
	}
}

// Middleware counts requests and their latency by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
