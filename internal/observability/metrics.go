package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and pipeline flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	codesForwardedTotal  *prometheus.CounterVec
	forwardFailedTotal   *prometheus.CounterVec
	extractionMissTotal  prometheus.Counter
	sendDuration         *prometheus.HistogramVec
	workerInflight       prometheus.Gauge
	retryScheduledTotal  *prometheus.CounterVec
	eventsIgnoredTotal   *prometheus.CounterVec
	eventsAcceptedTotal  prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smsbridge",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		codesForwardedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "codes_forwarded_total",
				Help:      "Total number of verification codes delivered successfully.",
			},
			[]string{"transport"},
		),
		forwardFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "forward_failed_total",
				Help:      "Total number of forwarding attempts that ended in failed state.",
			},
			[]string{"transport", "reason"},
		),
		extractionMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "extraction_miss_total",
				Help:      "Total number of accepted messages with no parsable code.",
			},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "smsbridge",
				Name:      "send_duration_seconds",
				Help:      "Transport send duration in seconds grouped by transport.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"transport"},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "smsbridge",
				Name:      "worker_inflight",
				Help:      "Current number of in-flight delivery jobs.",
			},
		),
		retryScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "retry_scheduled_total",
				Help:      "Total number of deliveries scheduled for retry.",
			},
			[]string{"transport"},
		),
		eventsIgnoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "events_ignored_total",
				Help:      "Total number of inbound events ignored by the gate.",
			},
			[]string{"reason"},
		),
		eventsAcceptedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "smsbridge",
				Name:      "events_accepted_total",
				Help:      "Total number of inbound events accepted for processing.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.codesForwardedTotal,
		m.forwardFailedTotal,
		m.extractionMissTotal,
		m.sendDuration,
		m.workerInflight,
		m.retryScheduledTotal,
		m.eventsIgnoredTotal,
		m.eventsAcceptedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncCodeForwarded(transport string) {
	if m == nil {
		return
	}
	m.codesForwardedTotal.WithLabelValues(normalizeTransport(transport)).Inc()
}

func (m *Metrics) IncForwardFailed(transport string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.forwardFailedTotal.WithLabelValues(normalizeTransport(transport), reasonLabel).Inc()
}

func (m *Metrics) IncExtractionMiss() {
	if m == nil {
		return
	}
	m.extractionMissTotal.Inc()
}

func (m *Metrics) ObserveSendDuration(transport string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeTransport(transport)).Observe(seconds)
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) IncRetryScheduled(transport string) {
	if m == nil {
		return
	}
	m.retryScheduledTotal.WithLabelValues(normalizeTransport(transport)).Inc()
}

func (m *Metrics) IncEventIgnored(reason string) {
	m.AddEventsIgnored(reason, 1)
}

// AddEventsIgnored counts n ignored events under one reason, as a batch can
// set several aside in a single decision.
func (m *Metrics) AddEventsIgnored(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.eventsIgnoredTotal.WithLabelValues(reasonLabel).Add(float64(n))
}

func (m *Metrics) IncEventAccepted() {
	if m == nil {
		return
	}
	m.eventsAcceptedTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeTransport(transport string) string {
	normalized := strings.ToLower(strings.TrimSpace(transport))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
