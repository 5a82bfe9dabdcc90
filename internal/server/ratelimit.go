package server

import (
	"maps"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mfarzz/jobai/internal/errors"
	"github.com/mfarzz/jobai/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// limiterIdleAge is how long a key may stay unused before its bucket is dropped
const limiterIdleAge = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Keys are namespaced as
// "ip:<addr>" or "api:<key>".
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rate     rate.Limit
	burst    int
	rejected map[string]int64
	done     chan struct{}
	once     sync.Once
	logger   *errors.Logger
}

// NewRateLimiter allows requestsPerMin per key with the given burst. Close
// stops the idle sweep.
func NewRateLimiter(requestsPerMin, burstCapacity int, logger *errors.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*client),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		rejected: make(map[string]int64),
		done:     make(chan struct{}),
		logger:   logger,
	}
	go rl.sweep(limiterIdleAge)
	return rl
}

// Reserve takes a token for key. When none is available it returns false and
// how long the caller should wait before retrying.
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = now

	if c.limiter.AllowN(now, 1) {
		return true, 0
	}
	rl.rejected[namespace(key)]++

	wait := time.Second
	if rl.rate > 0 {
		wait = time.Duration(float64(time.Second) / float64(rl.rate))
	}
	return false, wait
}

// Allow reports whether a request for key may proceed now
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Reserve(key)
	return ok
}

func namespace(key string) string {
	prefix, _, _ := strings.Cut(key, ":")
	return prefix
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"active_limiters": len(rl.clients),
		"rate_per_second": float64(rl.rate),
		"rate_per_minute": float64(rl.rate) * 60.0,
		"burst_capacity":  rl.burst,
		"rejected":        maps.Clone(rl.rejected),
	}
}

func (rl *RateLimiter) sweep(idleAge time.Duration) {
	ticker := time.NewTicker(idleAge)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.evictIdle(now.Add(-idleAge))
		case <-rl.done:
			return
		}
	}
}

// evictIdle drops buckets last used before cutoff
func (rl *RateLimiter) evictIdle(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	maps.DeleteFunc(rl.clients, func(_ string, c *client) bool {
		return c.lastSeen.Before(cutoff)
	})

	if rl.logger != nil {
		rl.logger.Debug("Rate limiter sweep completed", "remaining_limiters", len(rl.clients))
	}
}

// Close stops the sweep goroutine; it is safe to call more than once
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

// createRateLimitMiddleware rejects requests over the configured rate with 429
// and records a rate_limit_hit metric for each rejection.
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			ok, retryAfter := s.RateLimiter.Reserve(key)
			if ok {
				next(w, r)
				return
			}

			s.Logger.Info("Rate limit exceeded",
				"key_type", namespace(key),
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			om.GetMetrics().RecordBusinessMetric(r.Context(), observability.MetricRateLimitHit, true, om,
				attribute.String("endpoint", r.Pattern),
				attribute.String("method", r.Method),
				attribute.String("key_type", namespace(key)))

			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeErrorResponse(w, "RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)
		}
	}
}

// getRateLimitKey prefers the API key when byAPIKey is set and falls back
// to the client IP when byIP is set
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := extractAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

// getClientIP takes the first valid address from X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func getClientIP(r *http.Request) string {
	for ip := range strings.SplitSeq(r.Header.Get("X-Forwarded-For"), ",") {
		if ip = strings.TrimSpace(ip); net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
