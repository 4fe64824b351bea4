package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OddsPulse/pkg/cache"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestLimiter_FixedWindow(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	clk := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 5, 0, time.UTC)}
	l := New(mc, 2, time.Minute, WithClock(clk.Now))
	ctx := context.Background()

	d, err := l.Allow(ctx, "1.2.3.4:/api/recommend")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Remaining)

	d, err = l.Allow(ctx, "1.2.3.4:/api/recommend")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)

	d, err = l.Allow(ctx, "1.2.3.4:/api/recommend")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Date(2026, 5, 1, 10, 1, 0, 0, time.UTC), d.ResetAt)

	// other keys have their own counter
	d, err = l.Allow(ctx, "5.6.7.8:/api/recommend")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// next window starts fresh
	clk.t = clk.t.Add(time.Minute)
	d, err = l.Allow(ctx, "1.2.3.4:/api/recommend")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_Middleware(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	clk := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 30, 0, time.UTC)}
	l := New(mc, 1, time.Minute, WithClock(clk.Now))

	e := echo.New()
	e.GET("/api/stats", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, l.Middleware())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get(echo.HeaderRetryAfter))
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")
}
