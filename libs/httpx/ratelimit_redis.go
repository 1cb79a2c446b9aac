package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter is a fixed-window limiter shared by every scheduling-service replica. Each
// window gets its own key so the reset time is known without a second round trip.
type RedisRateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

var incrWithTTL = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

func NewRedisRateLimiter(rdb *redis.Client, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Second {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "sched:rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix, now: time.Now}
}

// Middleware limits per client address. With failOpen a Redis outage lets traffic through.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := rl.check(r.Context(), clientKey(r))
			switch {
			case err != nil && failOpen:
				if logger != nil {
					logger.Warn("redis rate limiter unavailable; allowing request", "err", err)
				}
			case err != nil:
				if logger != nil {
					logger.Error("redis rate limiter unavailable", "err", err)
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			case !allowed:
				writeRateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Allow counts one request for key in the current window.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := rl.check(ctx, key)
	return allowed, err
}

func (rl *RedisRateLimiter) check(ctx context.Context, key string) (bool, time.Duration, error) {
	now := rl.now()
	bucket := now.UnixMilli() / rl.window.Milliseconds()
	resetAt := time.UnixMilli((bucket + 1) * rl.window.Milliseconds())

	n, err := incrWithTTL.Run(ctx, rl.rdb, []string{fmt.Sprintf("%s:%s:%d", rl.prefix, key, bucket)},
		rl.window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, err
	}
	return n <= rl.limit, resetAt.Sub(now), nil
}
