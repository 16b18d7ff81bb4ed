package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	t.Run("registering twice panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected duplicate registration to panic")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_AuthEvents(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAuthEvent("login", "success")
	metrics.RecordAuthEvent("login", "success")
	metrics.RecordAuthEvent("login", "failure")
	metrics.RecordTokenIssued("access")

	if got := testutil.ToFloat64(metrics.AuthEventsTotal.WithLabelValues("login", "success")); got != 2 {
		t.Errorf("Expected 2 successful logins, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.AuthEventsTotal.WithLabelValues("login", "failure")); got != 1 {
		t.Errorf("Expected 1 failed login, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.TokensIssuedTotal.WithLabelValues("access")); got != 1 {
		t.Errorf("Expected 1 access token, got %v", got)
	}
}

func TestMetrics_RateLimitDecisions(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordRateLimitDecision("login", true)
	metrics.RecordRateLimitDecision("login", false)
	metrics.RecordRateLimitError("redis")

	expected := `
# HELP patentguard_rate_limit_decisions_total Rate limiter decisions by profile and outcome
# TYPE patentguard_rate_limit_decisions_total counter
patentguard_rate_limit_decisions_total{outcome="allowed",profile="login"} 1
patentguard_rate_limit_decisions_total{outcome="rejected",profile="login"} 1
`
	if err := testutil.CollectAndCompare(metrics.RateLimitDecisionsTotal, strings.NewReader(expected)); err != nil {
		t.Errorf("Unexpected counter value: %v", err)
	}
	if got := testutil.ToFloat64(metrics.RateLimitErrorsTotal.WithLabelValues("redis")); got != 1 {
		t.Errorf("Expected 1 redis error, got %v", got)
	}
}

func TestMetrics_StoreAndDB(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveStoreOperation("insert", "postgres", nil, 3*time.Millisecond)
	metrics.ObserveStoreOperation("insert", "postgres", errors.New("boom"), time.Millisecond)
	metrics.ObservePasswordHash("hash", 40*time.Millisecond)
	metrics.RecordDBStats(sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3, WaitCount: 9})

	if got := testutil.ToFloat64(metrics.StoreOperationsTotal.WithLabelValues("insert", "postgres", "error")); got != 1 {
		t.Errorf("Expected 1 failed insert, got %v", got)
	}
	if count := testutil.CollectAndCount(metrics.StoreOperationDuration); count != 1 {
		t.Errorf("Expected 1 duration series, got %d", count)
	}
	if count := testutil.CollectAndCount(metrics.PasswordHashDuration); count != 1 {
		t.Errorf("Expected 1 hash duration series, got %d", count)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 3 {
		t.Errorf("Expected 3 idle connections, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsWait); got != 9 {
		t.Errorf("Expected wait count 9, got %v", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics

	metrics.RecordAuthEvent("login", "success")
	metrics.RecordTokenIssued("access")
	metrics.RecordRateLimitDecision("default", true)
	metrics.RecordRateLimitError("memory")
	metrics.ObserveStoreOperation("find", "memory", nil, time.Millisecond)
	metrics.ObservePasswordHash("verify", time.Millisecond)
	metrics.RecordDBStats(sql.DBStats{})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	t.Run("labels by route template", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())

		router := mux.NewRouter()
		router.Use(HTTPMetricsMiddleware(metrics))
		router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		for _, path := range []string{"/users/1", "/users/2"} {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		}

		expected := `
# HELP patentguard_http_requests_total Total number of HTTP requests
# TYPE patentguard_http_requests_total counter
patentguard_http_requests_total{method="GET",path="/users/{id}",status="200"} 2
`
		if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
			t.Errorf("Unexpected counter value: %v", err)
		}
		if count := testutil.CollectAndCount(metrics.HTTPResponseSize); count != 1 {
			t.Errorf("Expected 1 response size series, got %d", count)
		}
	})

	t.Run("records status codes outside a router", func(t *testing.T) {
		metrics := NewMetrics(prometheus.NewRegistry())

		handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("POST", "unmatched", "429")); got != 1 {
			t.Errorf("Expected 1 rejected request, got %v", got)
		}
	})
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordAuthEvent("register", "success")

	server := httptest.NewServer(MetricsHandler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `patentguard_auth_events_total{action="register",status="success"} 1`) {
		t.Errorf("Scrape output missing auth event: %s", body)
	}
}
