package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

func rateLimitedHandler(cfg RateLimitConfig) echo.HandlerFunc {
	return RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func doRequest(t *testing.T, h echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/intake", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})

	for i := 0; i < 5; i++ {
		rec := doRequest(t, h, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		if rec := doRequest(t, h, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := doRequest(t, h, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", got)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	h := rateLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	if rec := doRequest(t, h, "10.0.0.1:1234"); rec.Code != http.StatusOK {
		t.Fatalf("client a first request: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(t, h, "10.0.0.1:1234"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("client a second request: expected 429, got %d", rec.Code)
	}
	if rec := doRequest(t, h, "10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Fatalf("client b first request: expected 200, got %d", rec.Code)
	}
}

func TestRetryAfter_ZeroRate(t *testing.T) {
	l := rate.NewLimiter(0, 1)
	l.Allow()
	if ra := retryAfter(l); ra != 1 {
		t.Errorf("expected retryAfter 1 for zero rate, got %d", ra)
	}
}

func TestLimiterStore_ReusesLimiter(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})
	l1 := s.get("key1")
	if l1 != s.get("key1") {
		t.Error("expected same limiter for same key")
	}
	if l1 == s.get("key2") {
		t.Error("expected different limiter for different key")
	}
}
