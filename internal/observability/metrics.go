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

// Metrics stores Prometheus collectors used by the send and callback flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	smsSentTotal          prometheus.Counter
	smsFailedTotal        *prometheus.CounterVec
	carrierCallDuration   *prometheus.HistogramVec
	tokenFetchesTotal     *prometheus.CounterVec
	tokenRevocationsTotal *prometheus.CounterVec
	callbacksTotal        *prometheus.CounterVec
	retryScheduledTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "telia_gateway",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		smsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "sms_sent_total",
				Help:      "Total number of messages accepted by the carrier.",
			},
		),
		smsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "sms_failed_total",
				Help:      "Total number of failed send attempts by error code.",
			},
			[]string{"code"},
		),
		carrierCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "telia_gateway",
				Name:      "carrier_call_duration_seconds",
				Help:      "Carrier call duration in seconds grouped by endpoint.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
		tokenFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "token_fetches_total",
				Help:      "Total number of token fetches by source (cache, network, error).",
			},
			[]string{"source"},
		),
		tokenRevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "token_revocations_total",
				Help:      "Total number of token revocation attempts by result.",
			},
			[]string{"result"},
		),
		callbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "callbacks_total",
				Help:      "Total number of delivery receipt callbacks by result.",
			},
			[]string{"result"},
		),
		retryScheduledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "telia_gateway",
				Name:      "retry_scheduled_total",
				Help:      "Total number of busy-server retries scheduled.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.smsSentTotal,
		m.smsFailedTotal,
		m.carrierCallDuration,
		m.tokenFetchesTotal,
		m.tokenRevocationsTotal,
		m.callbacksTotal,
		m.retryScheduledTotal,
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

func (m *Metrics) IncSMSSent() {
	if m == nil {
		return
	}
	m.smsSentTotal.Inc()
}

func (m *Metrics) IncSMSFailed(code string) {
	if m == nil {
		return
	}
	codeLabel := strings.TrimSpace(strings.ToLower(code))
	if codeLabel == "" {
		codeLabel = "unknown"
	}
	m.smsFailedTotal.WithLabelValues(codeLabel).Inc()
}

func (m *Metrics) ObserveCarrierCallDuration(endpoint string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.carrierCallDuration.WithLabelValues(endpoint).Observe(seconds)
}

func (m *Metrics) IncTokenFetch(source string) {
	if m == nil {
		return
	}
	m.tokenFetchesTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) IncTokenRevocation(acknowledged bool) {
	if m == nil {
		return
	}
	result := "acknowledged"
	if !acknowledged {
		result = "unacknowledged"
	}
	m.tokenRevocationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCallback(result string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRetryScheduled() {
	if m == nil {
		return
	}
	m.retryScheduledTotal.Inc()
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
