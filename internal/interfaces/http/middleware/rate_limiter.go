package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter holds rate limiters for each client IP
type IPRateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time

	// OnDrop is called for every rejected request
	OnDrop func(path string)

	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
// rps: requests per second allowed per IP
// burst: maximum burst size
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     5 * time.Minute,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go limiter.cleanupRoutine()

	return limiter
}

// Allow reports whether a request from ip fits the budget
func (i *IPRateLimiter) Allow(ip string) bool {
	return i.getLimiter(ip).Allow()
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry, exists := i.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(i.rps, i.burst)}
		i.limiters[ip] = entry
	}
	entry.lastSeen = i.now()

	return entry.limiter
}

// Size returns the number of tracked clients
func (i *IPRateLimiter) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limiters)
}

// Stop terminates the cleanup goroutine
func (i *IPRateLimiter) Stop() {
	i.stopOnce.Do(func() { close(i.stop) })
}

func (i *IPRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(i.idle)
	defer ticker.Stop()

	for {
		select {
		case <-i.stop:
			return
		case <-ticker.C:
			i.evictIdle()
		}
	}
}

// evictIdle removes limiters not used for longer than the idle period
func (i *IPRateLimiter) evictIdle() {
	i.mu.Lock()
	defer i.mu.Unlock()

	threshold := i.now().Add(-i.idle)
	for ip, entry := range i.limiters {
		if entry.lastSeen.Before(threshold) {
			delete(i.limiters, ip)
		}
	}
}

// RateLimit middleware limits requests per client IP
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				if limiter.OnDrop != nil {
					limiter.OnDrop(r.URL.Path)
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP or the remote host
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
