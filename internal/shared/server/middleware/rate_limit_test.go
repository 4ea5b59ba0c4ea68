package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func rateLimitedRouter(now *time.Time) *gin.Engine {
	limiter := NewRateLimiter(func() time.Time { return *now })
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(userIDKey, "user-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/items" {
				return RateGroupSubmit
			}
			return RateGroupDefault
		},
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			RateGroupDefault: {Rate: 5, Burst: 10},
			RateGroupSubmit:  {Rate: 1, Burst: 2},
		},
	}))
	r.GET("/api/v1/items", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.POST("/api/v1/items", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"ok": true}) })
	return r
}

func TestRateLimitSubmitStricterThanDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := rateLimitedRouter(&now)

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
		if resp.Code != http.StatusCreated {
			t.Fatalf("submit %d expected 201, got %d", i+1, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("submit 3 expected 429, got %d", resp.Code)
	}

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("list %d expected 200, got %d", i+1, resp.Code)
		}
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := rateLimitedRouter(&now)

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp.Header().Get("Retry-After"))
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", payload.Error.Code)
	}
	if _, ok := payload.Error.Details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs detail")
	}
}

func TestRateLimitRefillsOverTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := rateLimitedRouter(&now)

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
	}
	now = now.Add(1500 * time.Millisecond)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/items", nil))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected refill to allow request, got %d", resp.Code)
	}
}
