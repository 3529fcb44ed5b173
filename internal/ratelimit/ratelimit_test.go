package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(cfg)
	l.now = clock.now
	return l, clock
}

func TestLimiterAllow(t *testing.T) {
	limiter, clock := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 5})
	defer limiter.Stop()

	key := "test-ip"

	for i := 0; i < 5; i++ {
		if !limiter.Allow(key) {
			t.Errorf("Request %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow(key) {
		t.Error("Request after burst should be denied")
	}

	// 1 second = 1 token at 60/min
	clock.advance(time.Second)

	if !limiter.Allow(key) {
		t.Error("Request after waiting should be allowed")
	}
}

func TestLimiterMultipleClients(t *testing.T) {
	limiter, _ := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("client-a")
	}

	if limiter.Allow("client-a") {
		t.Error("Client A should be rate limited")
	}
	if !limiter.Allow("client-b") {
		t.Error("Client B should not be rate limited")
	}
}

func TestLimiterDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(Config{RequestsPerMinute: 0, BurstSize: 1})
	defer limiter.Stop()

	for i := 0; i < 100; i++ {
		if !limiter.Allow("x") {
			t.Fatalf("request %d denied with limiting disabled", i)
		}
	}
}

func TestLimiterForgetIdle(t *testing.T) {
	limiter, clock := newTestLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})
	defer limiter.Stop()

	limiter.Allow("a")
	clock.advance(3 * time.Minute)
	limiter.Allow("b")

	if n := limiter.forgetIdle(2 * time.Minute); n != 1 {
		t.Errorf("forgetIdle removed %d clients, want 1", n)
	}
	limiter.Stop()
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, _ := newTestLimiter(Config{
		RequestsPerMinute: 6,
		BurstSize:         1,
		Skip:              func(c *gin.Context) bool { return c.Request.URL.Path == "/health" },
	})
	defer limiter.Stop()

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/v1/editor/sessions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	if w := do("POST", "/v1/editor/sessions"); w.Code != http.StatusCreated {
		t.Fatalf("first request status = %d", w.Code)
	}
	w := do("POST", "/v1/editor/sessions")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	// 6/min means one token every 10s
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want 10", got)
	}

	for i := 0; i < 5; i++ {
		if w := do("GET", "/health"); w.Code != http.StatusOK {
			t.Errorf("skipped path limited: %d", w.Code)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RequestsPerMinute != 120 {
		t.Errorf("Expected 120 requests/min, got %d", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("Expected burst size 20, got %d", cfg.BurstSize)
	}
	if cfg.CleanupInterval != time.Minute {
		t.Errorf("Expected 1 minute cleanup interval, got %v", cfg.CleanupInterval)
	}
}
