package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// WindowCounter counts hits per key in fixed windows.
type WindowCounter interface {
	// Incr records a hit and returns the count within the current window
	// together with the time left until the window resets.
	Incr(ctx context.Context, key string) (int64, time.Duration, error)
}

// RedisWindowCounter is a fixed-window counter shared across instances.
type RedisWindowCounter struct {
	rdb    redis.UniversalClient
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func NewRedisWindowCounter(rdb redis.UniversalClient, window time.Duration, prefix string) *RedisWindowCounter {
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "clinic:rl"
	}
	return &RedisWindowCounter{rdb: rdb, window: window, prefix: prefix}
}

func (r *RedisWindowCounter) Incr(ctx context.Context, key string) (int64, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, r.rdb, []string{r.prefix + ":" + key}, r.window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit script result %v", res)
	}
	count, err := toInt64(res[0])
	if err != nil {
		return 0, 0, err
	}
	ttl, err := toInt64(res[1])
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		ttl = r.window.Milliseconds()
	}
	return count, time.Duration(ttl) * time.Millisecond, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", v)
	}
}

// MemoryWindowCounter is the single-instance fallback.
type MemoryWindowCounter struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	count     int64
	resetTime time.Time
}

func NewMemoryWindowCounter(window time.Duration) *MemoryWindowCounter {
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryWindowCounter{window: window, now: time.Now, visitors: map[string]*visitor{}}
}

func (m *MemoryWindowCounter) Incr(_ context.Context, key string) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	v := m.visitors[key]
	if v == nil || !now.Before(v.resetTime) {
		if len(m.visitors) > 10000 {
			for k, old := range m.visitors {
				if !now.Before(old.resetTime) {
					delete(m.visitors, k)
				}
			}
		}
		v = &visitor{resetTime: now.Add(m.window)}
		m.visitors[key] = v
	}
	v.count++
	return v.count, v.resetTime.Sub(now), nil
}

// WindowLimit rejects a client IP after limit hits within a window. Counter
// failures fail open and are logged.
func WindowLimit(counter WindowCounter, limit int, scope string, logger zerolog.Logger) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = 10
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := scope + ":" + c.RealIP()
			count, reset, err := counter.Incr(c.Request().Context(), key)
			if err != nil {
				logger.Warn().Err(err).Str("scope", scope).Msg("window rate limiter unavailable")
				return next(c)
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > int64(limit) {
				secs := int(reset.Seconds())
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, try again later")
			}
			return next(c)
		}
	}
}
