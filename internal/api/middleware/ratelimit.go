package middleware

import (
	"context"
	"hash/fnv"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/pkg/httputil"
)

// Rate limit settings
const (
	RateLimitWindow = time.Minute
	rateLimitPrefix = "cardforge:ratelimit:"
)

// Limiter counts requests per key within the current window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (allowed bool, count int, err error)
}

// RedisLimiter is a fixed-window limiter shared by every server instance
type RedisLimiter struct {
	client redis.Cmdable
}

// NewRedisLimiter creates a limiter on client
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Allow increments the key's counter and reports whether it is within limit
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (bool, int, error) {
	fullKey := rateLimitPrefix + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, RateLimitWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	return count <= limit, count, nil
}

// RateLimitMiddleware provides rate limiting functionality
type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, limit int, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		logger:  logger,
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || m.limit <= 0 || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		allowed, count, err := m.limiter.Allow(r.Context(), clientKey(r), m.limit)
		if err != nil {
			// On Redis error, allow the request but log
			m.logger.Warn("rate limit check failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		remaining := m.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(RateLimitWindow.Seconds())))
			httputil.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by a hash of its API key, else by
// address. chi's RealIP middleware has already applied forwarding headers.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		h := fnv.New64a()
		h.Write([]byte(key))
		return "key:" + strconv.FormatUint(h.Sum64(), 16)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
