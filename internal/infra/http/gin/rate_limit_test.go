package ginserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
)

func TestRateLimiterPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("expected burst of two")
	}
	if rl.Allow("a") {
		t.Fatal("expected third request to be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("expected other client to have its own bucket")
	}
	now = now.Add(time.Second)
	if !rl.Allow("a") {
		t.Fatal("expected token refill after one second")
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(2 * time.Minute)
	rl.Allow("b")
	if _, ok := rl.visitors["a"]; ok {
		t.Fatal("expected idle visitor to be dropped")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 1, time.Minute).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if second.Code != http.StatusTooManyRequests || second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", second.Code)
	}
}
