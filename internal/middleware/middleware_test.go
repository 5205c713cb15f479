package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	handler := RateLimit(RateLimiterConfig{Rate: rate.Limit(1), Burst: 3})(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/menu-items", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rr.Code)
		}
	}

	req := httptest.NewRequest("GET", "/menu-items", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status: got %d, want 429", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "rate limit exceeded") {
		t.Errorf("body: %s", rr.Body.String())
	}

	// Another client has its own bucket.
	req = httptest.NewRequest("GET", "/menu-items", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("other client: status %d, want 200", rr.Code)
	}
}

func TestLimiterStore_RefillsAndForgets(t *testing.T) {
	now := time.Date(2026, 3, 18, 9, 0, 0, 0, time.UTC)
	s := newLimiterStore(RateLimiterConfig{Rate: rate.Limit(1), Burst: 1, ExpiresIn: time.Minute})
	s.now = func() time.Time { return now }

	if !s.allow("a") {
		t.Fatal("first request rejected")
	}
	if s.allow("a") {
		t.Fatal("second request in the same instant allowed")
	}

	now = now.Add(2 * time.Second)
	if !s.allow("a") {
		t.Fatal("bucket did not refill")
	}

	now = now.Add(2 * time.Minute)
	s.allow("b")
	if _, ok := s.visitors["a"]; ok {
		t.Fatal("idle visitor not forgotten")
	}
}

type recordingObserver struct {
	method string
	status int
}

func (o *recordingObserver) ObserveRequest(method string, status int, _ time.Duration) {
	o.method, o.status = method, status
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	obs := &recordingObserver{}

	handler := RequestLogger(zap.New(core), obs)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	req := httptest.NewRequest("POST", "/carts/abc/checkout", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if obs.method != "POST" || obs.status != http.StatusBadGateway {
		t.Fatalf("observer got %s %d", obs.method, obs.status)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level: got %v, want warn", entries[0].Level)
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/carts/abc/checkout" {
		t.Errorf("path field: %v", fields["path"])
	}
}

func TestRequestLogger_DefaultsToOK(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := RequestLogger(zap.New(core), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(200) {
		t.Errorf("status field: %v", got)
	}
}
