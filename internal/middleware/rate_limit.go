package middleware

import (
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/cache"
)

// Limiter is a token bucket
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// NewLimiter creates a full bucket of burst tokens refilled at ratePerSecond
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (l *Limiter) refill() {
	now := l.now()
	l.tokens = math.Min(l.maxTokens, l.tokens+now.Sub(l.lastRefill).Seconds()*l.refillRate)
	l.lastRefill = now
}

// Allow consumes a token if one is available
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter is the time until the next token
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 || l.refillRate <= 0 {
		return 0
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}

// RateLimitMiddleware throttles selected paths per client IP. Buckets for idle
// clients expire from a TTL cache.
type RateLimitMiddleware struct {
	mu       sync.Mutex
	buckets  *cache.Cache[string, *Limiter]
	paths    map[string]bool
	rate     float64
	burst    int
	clientIP func(r *http.Request) string
}

// NewRateLimitMiddleware allows perMinute requests per client to each of paths,
// with bursts of up to burst requests. perMinute <= 0 disables the limit.
func NewRateLimitMiddleware(perMinute, burst int, paths ...string) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		paths:    make(map[string]bool, len(paths)),
		rate:     float64(perMinute) / 60,
		burst:    max(burst, 1),
		clientIP: remoteIP,
	}
	idle := time.Hour
	if m.rate > 0 {
		// a bucket idle this long has refilled
		idle = time.Duration(float64(m.burst)/m.rate*float64(time.Second)) + time.Minute
		for _, p := range paths {
			m.paths[p] = true
		}
	}
	m.buckets = cache.New[string, *Limiter](idle, idle)
	return m
}

func (m *RateLimitMiddleware) bucket(key string) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.buckets.Get(key)
	if !ok {
		l = NewLimiter(m.rate, m.burst)
	}
	// refresh the TTL on every use
	m.buckets.Set(key, l)
	return l
}

// Wrap applies the limit to the configured paths. A nil middleware passes through.
func (m *RateLimitMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.paths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ip := m.clientIP(r)
		l := m.bucket(ip)
		if !l.Allow() {
			log.Printf("Warning: RateLimit: %s exceeded the limit for %s", ip, r.URL.Path)
			retry := int(math.Ceil(l.RetryAfter().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			api.RespondErrorWithCode(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop releases the bucket cache
func (m *RateLimitMiddleware) Stop() {
	m.buckets.Stop()
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
