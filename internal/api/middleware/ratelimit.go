package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/super3/nilo.chat-sub000/internal/metrics"
	"github.com/super3/nilo.chat-sub000/internal/store"
)

// RateLimit defines a fixed-window limit for an endpoint pattern.
type RateLimit struct {
	Requests int64
	Window   time.Duration
}

// RateLimiter implements fixed-window rate limiting backed by Redis.
// Counters are keyed by API key when present, otherwise by client IP.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limits map[string]RateLimit
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /messages": {30, time.Minute},
			"GET /messages/": {120, time.Minute},
			"GET /channels":  {60, time.Minute},
			"POST /keys":     {10, time.Hour},
			"DELETE /keys/":  {30, time.Minute},
			"GET /keys":      {60, time.Minute},
		},
	}
}

// Middleware enforces the configured limits. Redis errors fail open:
// a broken limiter must not take the write path down with it.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, pattern, ok := rl.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		caller := callerKey(r)
		count, err := rl.redis.IncrWindow(r.Context(), pattern+":"+caller, limit.Window)
		if err != nil {
			rl.logger.Warn().Err(err).Str("endpoint", pattern).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit.Requests, 10))
		remaining := limit.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit.Requests {
			metrics.RateLimitHits.WithLabelValues(pattern).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(limit.Window.Seconds())))
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// match finds the limit for a request by method + path prefix.
func (rl *RateLimiter) match(r *http.Request) (RateLimit, string, bool) {
	exact := r.Method + " " + r.URL.Path
	if limit, ok := rl.limits[exact]; ok {
		return limit, exact, true
	}
	for pattern, limit := range rl.limits {
		if !strings.HasSuffix(pattern, "/") {
			continue
		}
		if strings.HasPrefix(exact, pattern) && len(exact) > len(pattern) {
			return limit, pattern, true
		}
	}
	return RateLimit{}, "", false
}

// callerKey identifies the caller without storing raw credentials.
func callerKey(r *http.Request) string {
	if raw := r.Header.Get("X-API-Key"); raw != "" {
		sum := sha256.Sum256([]byte(raw))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return fmt.Sprintf("ip:%s", host)
}
