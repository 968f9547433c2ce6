package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the service's Prometheus metrics. Each Collector registers
// on its own registry so several can coexist in one process (tests).
// Observation methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	SubmissionsTotal   *prometheus.CounterVec
	SubmissionRecords  prometheus.Histogram
	SubmissionDuration prometheus.Histogram
	IdempotentReplays  prometheus.Counter

	ChartReadsTotal      *prometheus.CounterVec
	ChartSectionFailures *prometheus.CounterVec
	ChartReadDuration    prometheus.Histogram
}

func NewCollector(serviceName string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "Intake submissions by terminal state and failure class.",
		}, []string{"state", "class"}),

		SubmissionRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "intake",
			Name:      "batch_records",
			Help:      "Number of records per submitted batch.",
			Buckets:   []float64{1, 5, 10, 15, 20, 30, 40, 60},
		}),

		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "intake",
			Name:      "submit_duration_seconds",
			Help:      "Latency of the repository transaction per submission.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),

		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "intake",
			Name:      "idempotent_replays_total",
			Help:      "Responses replayed for a repeated Idempotency-Key.",
		}),

		ChartReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "chart",
			Name:      "reads_total",
			Help:      "Chart reads by result (ok, degraded, not_found, denied, error).",
		}, []string{"result"}),

		ChartSectionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "chart",
			Name:      "section_failures_total",
			Help:      "Linked-record queries that failed during a chart read.",
		}, []string{"section"}),

		ChartReadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "chart",
			Name:      "read_duration_seconds",
			Help:      "End-to-end chart read latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Middleware records request counts, latency and in-flight requests. Paths
// are labelled by route template to keep cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c == nil {
				return next(ctx)
			}
			c.InFlightGauge.Inc()
			defer c.InFlightGauge.Dec()

			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Error(err)
			}

			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			status := strconv.Itoa(ctx.Response().Status)
			method := ctx.Request().Method
			c.RequestsTotal.WithLabelValues(method, path, status).Inc()
			c.RequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ObserveSubmission records one terminal submission outcome.
func (c *Collector) ObserveSubmission(state, class string, records int, d time.Duration) {
	if c == nil {
		return
	}
	c.SubmissionsTotal.WithLabelValues(state, class).Inc()
	if records > 0 {
		c.SubmissionRecords.Observe(float64(records))
	}
	if d > 0 {
		c.SubmissionDuration.Observe(d.Seconds())
	}
}

// ObserveReplay counts an idempotent replay.
func (c *Collector) ObserveReplay() {
	if c == nil {
		return
	}
	c.IdempotentReplays.Inc()
}

// ObserveChartRead records one chart read and the sections that failed.
func (c *Collector) ObserveChartRead(result string, failedSections []string, d time.Duration) {
	if c == nil {
		return
	}
	c.ChartReadsTotal.WithLabelValues(result).Inc()
	for _, s := range failedSections {
		c.ChartSectionFailures.WithLabelValues(s).Inc()
	}
	c.ChartReadDuration.Observe(d.Seconds())
}
