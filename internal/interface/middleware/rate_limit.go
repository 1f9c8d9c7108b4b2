package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Melih7342/bookmanager/pkg/response"
)

// KeyFunc names the bucket a request is counted in.
type KeyFunc func(c *gin.Context) string

// AllowFunc returns true for requests that skip the limit.
type AllowFunc func(*gin.Context) bool

// clientIP prefers the address resolved by RealIP.
func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func routeOf(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

// KeyByIP counts per client address.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "rl:ip:" + clientIP(c) }
}

// KeyByIPAndPath counts per client address and route, so login and register have separate budgets.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string { return "rl:path:" + routeOf(c) + ":ip:" + clientIP(c) }
}

// KeyByUsername counts per authenticated account and per address for anonymous calls.
func KeyByUsername() KeyFunc {
	return func(c *gin.Context) string {
		if u := Username(c); u != "" {
			return "rl:user:" + u
		}
		return "rl:user:anon:ip:" + clientIP(c)
	}
}

// hitScript increments the bucket, starts its window on the first hit and returns
// {count, remaining ttl in ms}.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// fixedWindow is a counter per key that resets every window.
type fixedWindow struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func (w fixedWindow) hit(ctx context.Context, key string) (count int, reset time.Duration, err error) {
	res, err := hitScript.Run(ctx, w.rdb, []string{key}, w.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	return int(res[0]), time.Duration(max(res[1], 0)) * time.Millisecond, nil
}

// RateLimit allows limit requests per window and bucket, counted atomically in Redis.
// It is a no-op without a client and fails open when Redis errors. OPTIONS is never counted.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if rdb == nil || limit <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	fw := fixedWindow{rdb: rdb, limit: limit, window: window}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (allow != nil && allow(c)) {
			c.Next()
			return
		}

		count, reset, err := fw.hit(c.Request.Context(), keyFn(c))
		if err != nil {
			c.Next()
			return
		}
		resetSec := int((reset + time.Second - 1) / time.Second)

		// https://datatracker.ietf.org/doc/html/rfc6585#section-4
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(limit-count, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if count > limit {
			c.Header("Retry-After", strconv.Itoa(resetSec))
			response.Error[any](c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
