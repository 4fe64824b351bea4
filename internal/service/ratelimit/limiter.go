package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"OddsPulse/pkg/cache"
	xhttp "OddsPulse/pkg/http"
	applogger "OddsPulse/pkg/logger"
)

// Limiter is a fixed-window counter kept in the cache service, so every instance sharing
// a Redis sees the same counts.
type Limiter struct {
	cache  cache.Service
	limit  int64
	window time.Duration
	now    func() time.Time
	l      *applogger.Logger
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(log *applogger.Logger) Option {
	return func(l *Limiter) { l.l = log }
}

func New(c cache.Service, limit int, window time.Duration, opts ...Option) *Limiter {
	lim := &Limiter{
		cache:  c,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
		l:      applogger.Nop(),
	}
	for _, opt := range opts {
		opt(lim)
	}
	return lim
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow counts one hit for key in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	reset := windowStart.Add(l.window)
	ck := "ratelimit:" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	n, err := l.cache.Increment(ctx, ck)
	if err != nil {
		return Decision{Allowed: true, ResetAt: reset}, fmt.Errorf("increment %s: %w", ck, err)
	}
	if n == 1 {
		// The key outlives its window slightly so a late hit never resets the count.
		if _, err := l.cache.Expire(ctx, ck, reset.Sub(now)+time.Second); err != nil {
			return Decision{Allowed: true, ResetAt: reset}, fmt.Errorf("expire %s: %w", ck, err)
		}
	}

	remaining := l.limit - n
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: n <= l.limit, Remaining: remaining, ResetAt: reset}, nil
}

// Middleware limits requests per remote address and route. Cache failures let the
// request through.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + ":" + c.Request().Method + ":" + c.Path()
			d, err := l.Allow(c.Request().Context(), key)
			if err != nil {
				l.l.Warn("rate limiter unavailable", applogger.String("key", key), applogger.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				retry := int(d.ResetAt.Sub(l.now()).Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				h.Set(echo.HeaderRetryAfter, strconv.Itoa(retry))
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded").
					WithParam("retryAfter", retry))
			}
			return next(c)
		}
	}
}
