package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"subtrack/internal/billing"
	"subtrack/internal/core"
	applog "subtrack/internal/log"
	"subtrack/internal/middleware/ratelimit"
	"subtrack/internal/ports"
	"subtrack/internal/services"
	"subtrack/internal/storage/memory"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var scenarioCharges = []core.RawCharge{
	{ID: 1, Name: "Hosting", Amount: 30.0, BillingCycle: "monthly", Status: "active", Currency: "USD", CreatedAt: "2024-01-01"},
	{ID: 2, Name: "Domain", Amount: "120", BillingCycle: "yearly", Status: "active", Currency: "USD", CreatedAt: "2024-02-01"},
	{ID: 3, Name: "Laptop", Amount: 500, BillingCycle: "one-time", Status: "active", Currency: "EUR", CreatedAt: "2024-03-01"},
}

type fakePublisher struct {
	exports []core.Window
	err     error
}

func (f *fakePublisher) PublishChargeChanged(context.Context, int64, string) error { return f.err }

func (f *fakePublisher) PublishReportExport(_ context.Context, _ string, w core.Window) error {
	if f.err != nil {
		return f.err
	}
	f.exports = append(f.exports, w)
	return nil
}

// brokenStore fails every read, as a locked or missing database would.
type brokenStore struct{ *memory.Store }

var errBroken = errors.New("database is locked")

func (brokenStore) ListCharges(context.Context, ports.ChargeFilter) ([]core.RawCharge, error) {
	return nil, errBroken
}

func (brokenStore) CountCharges(context.Context) (int64, error) { return 0, errBroken }

func (brokenStore) CreateCharge(context.Context, core.ChargeInput) (int64, error) { return 0, errBroken }

type testServer struct {
	*Server
	events *fakePublisher
}

func newTestServer(t *testing.T, store ports.ChargeStore, events *fakePublisher, rl ratelimit.Config) *testServer {
	t.Helper()
	n := billing.NewNormalizer(billing.Config{
		DefaultCurrency: "USD",
		TopN:            10,
		Now:             func() time.Time { return testNow },
	})
	var pub ports.EventPublisher
	if events != nil {
		pub = events
	}
	logger := applog.New(applog.Config{Output: &bytes.Buffer{}})
	srv := NewServer(":0", store, services.NewReportService(store, n), pub, Options{Logger: logger, RateLimit: rl})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, events: events}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.RemoteAddr = "203.0.113.10:5555"
	w := httptest.NewRecorder()
	ts.Handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, memory.New(scenarioCharges), nil, ratelimit.Config{})

	if w := ts.do(http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}
	w := ts.do(http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz status = %d", w.Code)
	}
	if got := decode(t, w)["charges"]; got != 3.0 {
		t.Errorf("charges = %v, want 3", got)
	}

	broken := newTestServer(t, brokenStore{memory.New(nil)}, nil, ratelimit.Config{})
	if w := broken.do(http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with broken store = %d, want 503", w.Code)
	}
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, memory.New(scenarioCharges), nil, ratelimit.Config{})

	w := ts.do(http.MethodGet, "/api/v1/reports/dashboard?from=2024-01&to=2024-03", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get(HeaderDegraded) != "" {
		t.Error("healthy dashboard must not be marked degraded")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}

	body := decode(t, w)
	totals := body["totals"].(map[string]any)
	want := map[string]float64{
		"total_monthly_cost":   40,
		"total_yearly_cost":    120,
		"total_onetime_cost":   500,
		"active_subscriptions": 2,
		"avg_monthly_spend":    20,
	}
	for k, v := range want {
		if totals[k] != v {
			t.Errorf("totals[%s] = %v, want %v", k, totals[k], v)
		}
	}
	if trend := body["spending_trend"].([]any); len(trend) != 3 {
		t.Errorf("spending_trend has %d buckets, want 3", len(trend))
	}
	window := body["window"].(map[string]any)
	if window["from"] != "2024-01" || window["to"] != "2024-03" {
		t.Errorf("window = %v", window)
	}
}

func TestDashboard_Degraded(t *testing.T) {
	ts := newTestServer(t, brokenStore{memory.New(nil)}, nil, ratelimit.Config{})

	w := ts.do(http.MethodGet, "/api/v1/reports/dashboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get(HeaderDegraded) != "true" {
		t.Error("degraded header missing")
	}
	body := decode(t, w)
	if body["degraded"] != true {
		t.Errorf("degraded = %v", body["degraded"])
	}
	if top := body["top_subscriptions"].(map[string]any); len(top["labels"].([]any)) != 0 {
		t.Errorf("degraded report should have empty series, got %v", top)
	}
}

func TestReportEndpoints(t *testing.T) {
	ts := newTestServer(t, memory.New(scenarioCharges), nil, ratelimit.Config{})

	tests := []struct {
		name   string
		target string
		status int
		check  func(t *testing.T, data any)
	}{
		{
			name:   "totals",
			target: "/api/v1/reports/totals",
			status: http.StatusOK,
			check: func(t *testing.T, data any) {
				if got := data.(map[string]any)["total_annual_cost"]; got != 480.0 {
					t.Errorf("total_annual_cost = %v, want 480", got)
				}
			},
		},
		{
			name:   "growth trend",
			target: "/api/v1/reports/trend?mode=growth_count&from=2024-01&to=2024-03",
			status: http.StatusOK,
			check: func(t *testing.T, data any) {
				buckets := data.(map[string]any)["buckets"].([]any)
				last := buckets[len(buckets)-1].(map[string]any)
				if last["value"] != 3.0 {
					t.Errorf("last growth bucket = %v, want 3", last["value"])
				}
			},
		},
		{
			name:   "top two",
			target: "/api/v1/reports/top?n=2",
			status: http.StatusOK,
			check: func(t *testing.T, data any) {
				labels := data.(map[string]any)["labels"].([]any)
				if len(labels) != 2 || labels[0] != "Hosting" {
					t.Errorf("labels = %v", labels)
				}
			},
		},
		{
			name:   "currencies",
			target: "/api/v1/reports/currencies",
			status: http.StatusOK,
			check: func(t *testing.T, data any) {
				labels := data.(map[string]any)["labels"].([]any)
				if len(labels) == 0 || labels[0] != "USD" {
					t.Errorf("labels = %v", labels)
				}
			},
		},
		{
			name:   "breakdowns",
			target: "/api/v1/reports/breakdowns",
			status: http.StatusOK,
			check: func(t *testing.T, data any) {
				if _, ok := data.(map[string]any)["status_distribution"]; !ok {
					t.Error("status_distribution missing")
				}
			},
		},
		{name: "invalid month", target: "/api/v1/reports/totals?from=2024-13", status: http.StatusBadRequest},
		{name: "invalid date", target: "/api/v1/reports/dashboard?to=yesterday", status: http.StatusBadRequest},
		{name: "invalid mode", target: "/api/v1/reports/trend?mode=weekly", status: http.StatusBadRequest},
		{name: "invalid n", target: "/api/v1/reports/top?n=0", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodGet, tt.target, "")
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			body := decode(t, w)
			if tt.status != http.StatusOK {
				if body["error"] == nil {
					t.Error("error body missing")
				}
				return
			}
			if tt.check != nil {
				tt.check(t, body["data"])
			}
		})
	}
}

func TestExport(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, memory.New(nil), nil, ratelimit.Config{})
		if w := ts.do(http.MethodPost, "/api/v1/reports/export", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("queued", func(t *testing.T) {
		events := &fakePublisher{}
		ts := newTestServer(t, memory.New(nil), events, ratelimit.Config{})
		w := ts.do(http.MethodPost, "/api/v1/reports/export?from=2024-01&to=2024-06", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", w.Code)
		}
		if decode(t, w)["request_id"] == "" {
			t.Error("request_id missing")
		}
		if len(events.exports) != 1 || events.exports[0].To.Month() != time.June {
			t.Errorf("exports = %v", events.exports)
		}
	})

	t.Run("queue down", func(t *testing.T) {
		events := &fakePublisher{err: errors.New("circuit breaker is open")}
		ts := newTestServer(t, memory.New(nil), events, ratelimit.Config{})
		if w := ts.do(http.MethodPost, "/api/v1/reports/export", ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ts := newTestServer(t, memory.New(nil), nil, ratelimit.Config{})
	w := ts.do(http.MethodGet, "/healthz", "")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request id header missing")
	}
	if ts.Metrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d", ts.Metrics().TotalRequests)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	ts := newTestServer(t, memory.New(nil), nil, ratelimit.Config{RequestsPerMinute: 1, Burst: 1})
	body := `{"name":"Music","amount":9.99,"billing_cycle":"monthly"}`

	if w := ts.do(http.MethodPost, "/api/v1/charges", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	w := ts.do(http.MethodPost, "/api/v1/charges", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second create = %d, want 429", w.Code)
	}
	if decode(t, w)["error"] == nil {
		t.Error("rate limit response should be JSON")
	}
	if w := ts.do(http.MethodGet, "/api/v1/charges", ""); w.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", w.Code)
	}
}

func TestShutdownTwice(t *testing.T) {
	ts := newTestServer(t, memory.New(nil), nil, ratelimit.Config{})
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := ts.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
