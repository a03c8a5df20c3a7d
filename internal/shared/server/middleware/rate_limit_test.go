package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"speech-backend/internal/shared/server/respond"
)

func newLimitedRouter(limiter *RateLimiter, rule RateLimitRule, user string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != "" {
			c.Set(userIDKey, user)
		}
		c.Next()
	})
	r.GET("/speech/uploadurl", RateLimit(rule, limiter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRateLimitPerUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(16, time.Minute, func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 2}

	u1 := newLimitedRouter(limiter, rule, "u1")
	u2 := newLimitedRouter(limiter, rule, "u2")

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		u1.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	u1.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for u1, got %d", resp.Code)
	}

	other := httptest.NewRecorder()
	u2.ServeHTTP(other, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
	if other.Code != http.StatusOK {
		t.Fatalf("expected u2 to have its own bucket, got %d", other.Code)
	}

	now = now.Add(time.Second)
	refilled := httptest.NewRecorder()
	u1.ServeHTTP(refilled, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
	if refilled.Code != http.StatusOK {
		t.Fatalf("expected refill after 1s, got %d", refilled.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(16, time.Minute, func() time.Time { return now })
	r := newLimitedRouter(limiter, RateLimitRule{Rate: 1, Burst: 1}, "u1")

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/speech/uploadurl", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", second.Header().Get("Retry-After"))
	}

	var payload respond.ErrorResponse
	if err := json.NewDecoder(second.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", payload.Error.Code)
	}
	details, ok := payload.Error.Details.(map[string]any)
	if !ok || details["retryAfterMs"] == nil {
		t.Fatalf("expected retryAfterMs in details, got %v", payload.Error.Details)
	}
}

func TestRateLimiterConcurrentFirstRequestsShareBucket(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(0, 0, func() time.Time { return now })
	rule := RateLimitRule{Rate: 0.001, Burst: 2}

	var (
		allowed int32
		wg      sync.WaitGroup
		start   = make(chan struct{})
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := limiter.Allow("u1|/speech/uploadurl", rule); ok {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if allowed != 2 {
		t.Fatalf("expected exactly burst=2 requests allowed, got %d", allowed)
	}
}
