package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRegisterAndIncrement(t *testing.T) {
	m := New()
	m.ReconnectAttempts.Inc()
	m.ReconnectAttempts.Inc()
	m.EventsApplied.WithLabelValues("message_sent").Inc()
	m.PushState.Set(2)

	if got := testutil.ToFloat64(m.ReconnectAttempts); got != 2 {
		t.Fatalf("reconnect attempts = %v", got)
	}
	if got := testutil.ToFloat64(m.EventsApplied.WithLabelValues("message_sent")); got != 1 {
		t.Fatalf("events applied = %v", got)
	}
	if got := testutil.ToFloat64(m.PushState); got != 2 {
		t.Fatalf("push state = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SendFailures.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "linkgrid_messaging_send_failures_total 1") {
		t.Fatal("send failures counter missing from exposition")
	}
}
