package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncSMSSent()
	m.IncSMSSent()
	m.IncSMSFailed("server_busy")
	m.IncSMSFailed("  Server_Busy ")
	m.IncSMSFailed("")
	m.IncTokenFetch("cache")
	m.IncTokenRevocation(true)
	m.IncTokenRevocation(false)
	m.IncCallback("accepted")
	m.IncRetryScheduled()

	if got := testutil.ToFloat64(m.smsSentTotal); got != 2 {
		t.Errorf("sms_sent_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.smsFailedTotal.WithLabelValues("server_busy")); got != 2 {
		t.Errorf("sms_failed_total{server_busy} = %v, want 2 (label normalized)", got)
	}
	if got := testutil.ToFloat64(m.smsFailedTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("sms_failed_total{unknown} = %v, want 1 for an empty code", got)
	}
	if got := testutil.ToFloat64(m.tokenFetchesTotal.WithLabelValues("cache")); got != 1 {
		t.Errorf("token_fetches_total{cache} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tokenRevocationsTotal.WithLabelValues("acknowledged")); got != 1 {
		t.Errorf("token_revocations_total{acknowledged} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tokenRevocationsTotal.WithLabelValues("unacknowledged")); got != 1 {
		t.Errorf("token_revocations_total{unacknowledged} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.callbacksTotal.WithLabelValues("accepted")); got != 1 {
		t.Errorf("callbacks_total{accepted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retryScheduledTotal); got != 1 {
		t.Errorf("retry_scheduled_total = %v, want 1", got)
	}
}

func TestMetricsNilSafety(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.IncSMSSent()
	m.IncSMSFailed("server_busy")
	m.ObserveCarrierCallDuration("messaging", time.Second)
	m.IncTokenFetch("network")
	m.IncTokenRevocation(true)
	m.IncCallback("accepted")
	m.IncRetryScheduled()
}

func TestMetricsHTTPMiddleware(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	app := fiber.New()
	app.Use(m.HTTPMiddleware())
	app.Get("/v1/deliveries/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/deliveries/d-1", nil), -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	counter := m.httpRequestsTotal.WithLabelValues("GET", "/v1/deliveries/:id", "200")
	if got := testutil.ToFloat64(counter); got != 1 {
		t.Errorf("http_requests_total = %v, want 1 with the route template label", got)
	}
}
