package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter := newFixedWindowLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("203.0.113.9") || !limiter.Allow("203.0.113.9") {
		t.Fatal("expected first two requests to pass")
	}
	if limiter.Allow("203.0.113.9") {
		t.Fatal("expected third request in window to be rejected")
	}
	if !limiter.Allow("198.51.100.4") {
		t.Fatal("expected other clients to have their own window")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("203.0.113.9") {
		t.Fatal("expected window reset")
	}
}

func TestFixedWindowLimiterDisabled(t *testing.T) {
	if newFixedWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatal("expected nil limiter for zero limit")
	}
	if newFixedWindowLimiter(5, 0, nil) != nil {
		t.Fatal("expected nil limiter for zero window")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	if got := clientKey(req); got != "10.0.0.7" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	if got := clientKey(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestIntegrationChatStatusRateLimited(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	chat := &stubChatService{reply: "ok"}
	router := NewRouter(WithIntegrationRoutes(NewIntegrationHandlers(chat,
		WithChatRateLimit(1, 30*time.Second, func() time.Time { return now }),
	).Routes))

	send := func() *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/integrations/chat/status", strings.NewReader(`{"message":"CEK7"}`)))
		return rr
	}

	if rr := send(); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr := send()
	assertErrorResponse(t, rr, http.StatusTooManyRequests, "rate_limited")
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}
}
