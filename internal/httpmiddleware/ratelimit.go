package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"markr/internal/auth"
)

// TokenBucket is an in-memory rate limiter keyed by operator, or by client
// IP before authentication.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	swept    time.Time
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter with capacity tokens refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

// GinMiddleware enforces the limit. A non-positive rate disables it.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.allow(limitKey(c)) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "RATE_LIMITED"})
			return
		}
		c.Next()
	}
}

func limitKey(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Subject != "" {
		return "op:" + claims.Subject
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func (l *TokenBucket) retryAfter() int {
	secs := 60 / l.rate
	if secs < 1 {
		return 1
	}
	return secs
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	b, ok := l.state[key]
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// refillWindow is how long an empty bucket takes to fill up again.
func (l *TokenBucket) refillWindow() time.Duration {
	if l.rate <= 0 {
		return 0
	}
	return time.Duration(l.capacity) * time.Minute / time.Duration(l.rate)
}

// sweep drops buckets idle for longer than a full refill. Such a bucket is
// indistinguishable from a new one. It runs at most once per window.
func (l *TokenBucket) sweep(now time.Time) {
	window := l.refillWindow()
	if window <= 0 || now.Sub(l.swept) < window {
		return
	}
	l.swept = now
	for key, b := range l.state {
		if now.Sub(b.last) > window {
			delete(l.state, key)
		}
	}
}
