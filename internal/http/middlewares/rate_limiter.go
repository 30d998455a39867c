package middlewares

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per derived key.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst.
// Buckets idle for longer than idle are dropped.
func NewRateLimiter(perSecond float64, burst int, idle time.Duration) *RateLimiter {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, b := range rl.clients {
		if now.Sub(b.lastSeen) > rl.idle {
			delete(rl.clients, k)
		}
	}

	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = b
	}
	b.lastSeen = now

	return b.limiter
}

// RateLimiterMiddleware enforces the limit for the key derived by keyFn.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		lim := rl.bucket(key)
		res := lim.ReserveN(rl.now(), 1)

		if !res.OK() {
			abortRateLimited(c, 0)
			return
		}

		if delay := res.DelayFrom(rl.now()); delay > 0 {
			res.CancelAt(rl.now())
			abortRateLimited(c, delay)
			return
		}

		c.Next()
	}
}

func abortRateLimited(c *gin.Context, retryAfter time.Duration) {
	secs := int(math.Ceil(retryAfter.Seconds()))
	c.Header("Retry-After", strconv.Itoa(secs))

	abortJSON(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by userID if available
func KeyByUserOrIP(c *gin.Context) string {
	id, ok := UserIDFromContext(c)

	if ok && id != "" {
		return "user:" + id
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	// Gin's ClientIP respects X-Forwarded-For / X-Real-IP if configured.
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}
