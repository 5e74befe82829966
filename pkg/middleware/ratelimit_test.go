package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/audit"
	"github.com/platinummonkey/warden/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		ok, err := limiter.Allow(ctx, "ip:a")
		require.NoError(t, err)
		if ok {
			allowedCount++
		}
	}
	assert.Equal(t, config.RequestsPerWindow+config.BurstSize, allowedCount)

	ok, _ := limiter.Allow(ctx, "ip:b")
	assert.True(t, ok, "keys are independent")

	// After a full window, tokens refill
	now = now.Add(time.Second)
	ok, _ = limiter.Allow(ctx, "ip:a")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second})
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow(context.Background(), "ip:a")
	assert.Len(t, limiter.buckets, 1)

	now = now.Add(3 * time.Second)
	limiter.Cleanup()
	assert.Empty(t, limiter.buckets)
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, "")

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "ip:a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "ip:a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.TTL("warden:ratelimit:ip:a") > 0)

	mr.FastForward(2 * time.Minute)
	ok, err = limiter.Allow(ctx, "ip:a")
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, assert.AnError
}

func (failingLimiter) Config() *RateLimitConfig { return LoginRateLimitConfig() }

func TestRateLimitMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &logs)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("limits by client address", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
		handler := audit.NewOriginMiddleware(false).Handler(RateLimit(limiter, logger)(next))

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w
		}

		assert.Equal(t, http.StatusOK, send("203.0.113.1:1000").Code)
		limited := send("203.0.113.1:2000")
		assert.Equal(t, http.StatusTooManyRequests, limited.Code)
		assert.Equal(t, "60", limited.Header().Get("Retry-After"))
		assert.Equal(t, http.StatusOK, send("203.0.113.2:1000").Code)
	})

	t.Run("fails open", func(t *testing.T) {
		handler := RateLimit(failingLimiter{}, logger)(next)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, logs.String(), "Rate limiter unavailable")
	})
}
