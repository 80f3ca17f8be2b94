package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowAndRefill(t *testing.T) {
	now := time.Now()
	l := NewLimiter(1, 2)
	l.now = func() time.Time { return now }
	l.lastRefill = now

	if !l.Allow() || !l.Allow() {
		t.Fatal("expected the burst to be available")
	}
	if l.Allow() {
		t.Fatal("expected the bucket to be empty")
	}
	if got := l.RetryAfter(); got != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", got)
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected a token after refill")
	}
	if l.Allow() {
		t.Error("expected only one token to have refilled")
	}

	now = now.Add(time.Hour)
	if !l.Allow() || !l.Allow() || l.Allow() {
		t.Error("expected refill to stop at the burst size")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	m := NewRateLimitMiddleware(1, 2, "/auth/login")
	defer m.Stop()

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method, path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(http.MethodPost, "/auth/login", "10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := do(http.MethodPost, "/auth/login", "10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}

	if rec := do(http.MethodPost, "/auth/login", "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("expected another client to have its own bucket, got %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/api/alerts", "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("expected unlisted paths to pass, got %d", rec.Code)
	}
	if rec := do(http.MethodOptions, "/auth/login", "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("expected preflight to pass, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	m := NewRateLimitMiddleware(0, 1, "/auth/login")
	defer m.Stop()

	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}

	var nilLimit *RateLimitMiddleware
	next := http.NotFoundHandler()
	if got := nilLimit.Wrap(next); got == nil {
		t.Error("expected a nil middleware to pass through")
	}
}
