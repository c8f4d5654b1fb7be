package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	blocks    atomic.Int64
	fallbacks atomic.Int64
}

func (m *recordingMetrics) IncrementRateLimitBlock(string) { m.blocks.Add(1) }
func (m *recordingMetrics) IncrementRateLimitRedisError()  {}
func (m *recordingMetrics) IncrementRateLimitFallback()    { m.fallbacks.Add(1) }

func newFallbackLimiter(t *testing.T, config Config) (*RateLimiter, *recordingMetrics) {
	t.Helper()
	metrics := &recordingMetrics{}
	limiter := NewRateLimiter(&RedisClient{}, config, metrics)
	t.Cleanup(limiter.Close)
	return limiter, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	r := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:ip:1", r)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.Allow(ctx, "test:ip:1", r)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, result.RetryAfter, 12*time.Second)

	assert.Equal(t, int64(6), metrics.fallbacks.Load())
}

func TestRateLimiterRefills(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	r := Rate{Limit: 2, Period: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(ctx, "k", r)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}
	result, err := limiter.Allow(ctx, "k", r)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	now = now.Add(30 * time.Second)
	result, err = limiter.Allow(ctx, "k", r)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "one token back after period/limit")
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	r := Rate{Limit: 3, Period: time.Minute}

	for _, key := range []string{"ip:1", "ip:2", "ip:3"} {
		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, key, r)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "key %s request %d", key, i+1)
		}

		result, err := limiter.Allow(ctx, key, r)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "key %s 4th request", key)
	}
}

func TestRateLimiterRejectsInvalidRate(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limiter.Allow(ctx, "k", Rate{Limit: 1, Period: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, Config{IdleTTL: time.Minute})
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := limiter.AllowIP(ctx, "10.0.0.1")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = limiter.AllowIP(ctx, "10.0.0.2")
	require.NoError(t, err)

	now = now.Add(45 * time.Second)
	assert.Equal(t, 1, limiter.cleanup())
	assert.Equal(t, 1, limiter.GetStats()["fallback_limiters"])
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	r := Rate{Limit: 20, Period: time.Hour}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Allow(context.Background(), "shared", r)
			if err == nil && result.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), allowed.Load())
}

func TestRedisClientDisabled(t *testing.T) {
	client, err := NewRedisClient(context.Background(), "", "", 0)
	require.NoError(t, err)

	assert.False(t, client.IsEnabled())
	assert.False(t, client.Configured())
	assert.ErrorIs(t, client.HealthCheck(context.Background()), ErrRedisDisabled)
	assert.NoError(t, client.Close())
	assert.Equal(t, false, client.GetPoolStats()["enabled"])
}

func TestIPRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, metrics := newFallbackLimiter(t, Config{IPLimitPerMin: 2})

	router := gin.New()
	router.GET("/api/links/:token", limiter.IPRateLimitMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/links/abc", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		last = w
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit", body["category"])
	assert.Equal(t, int64(1), metrics.blocks.Load())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/links/abc", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients keep their own budget")
}
