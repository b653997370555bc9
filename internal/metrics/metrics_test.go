package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	r := NewRecorder()
	r.ObserveLogin("success")
	r.ObserveLogin("success")
	r.ObserveLogin("invalid_credentials")
	r.ObserveRefresh("invalid")
	r.ObserveTwoFactor("success")
	r.ObservePurge("sessions", 3)
	r.ObservePurge("sessions", 0)

	if got := testutil.ToFloat64(r.logins.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(r.logins.WithLabelValues("invalid_credentials")); got != 1 {
		t.Fatalf("expected 1 failed login, got %v", got)
	}
	if got := testutil.ToFloat64(r.refreshes.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("expected 1 invalid refresh, got %v", got)
	}
	if got := testutil.ToFloat64(r.purged.WithLabelValues("sessions")); got != 3 {
		t.Fatalf("expected 3 purged sessions, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveLogin("challenge")
	r.ObserveRequest(http.MethodPost, "/auth/login", "200", 15*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`auth_login_total{outcome="challenge"} 1`,
		`http_requests_total{method="POST",route="/auth/login",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
