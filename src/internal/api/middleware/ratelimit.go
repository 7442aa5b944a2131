// Package middleware holds the HTTP middleware that sits in front of the
// API handlers: CORS, security headers, request logging, metrics, and the
// per-client rate limiter guarding the AI routes.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

const visitorIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP. Buckets idle past
// visitorIdleTTL are evicted so the map does not grow with every address
// that ever connected.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

// NewRateLimiter builds a limiter from the ratelimit.* config keys and
// starts its eviction sweeper. One instance lives for the process.
func NewRateLimiter(cfg *viper.Viper) *RateLimiter {
	rps := cfg.GetFloat64("ratelimit.rps")
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.GetInt("ratelimit.burst")
	if burst <= 0 {
		burst = 5
	}

	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.evictLoop()
	return rl
}

// Middleware rejects callers with an exhausted bucket: 429 plus a
// Retry-After hint of one refill interval.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	retryAfter := int(math.Ceil(1 / float64(rl.rps)))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
			}
			return next(c)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	limiter := v.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.sweep(time.Now().Add(-visitorIdleTTL))
	}
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}
