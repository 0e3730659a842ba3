package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterStaleThreshold  = 10 * time.Minute
)

// IPRateLimiter throttles login attempts per client IP using a token
// bucket. Stale entries are swept inline during Allow calls.
type IPRateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

// visitor holds a rate limiter and last-seen time for a single IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a limiter that refills perMinute tokens per
// minute with the given burst.
func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       rate.Every(time.Minute / time.Duration(perMinute)),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether a request from the given IP may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// Periodic cleanup of stale entries
	if now.Sub(l.lastCleanup) > limiterCleanupInterval {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterStaleThreshold {
				delete(l.visitors, k)
			}
		}
		l.lastCleanup = now
	}

	v, exists := l.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(l.limit, l.burst)
		l.visitors[ip] = &visitor{
			limiter:  limiter,
			lastSeen: now,
		}
		limiter.Allow()
		return true
	}

	v.lastSeen = now
	return v.limiter.Allow()
}

// clientIP strips the port from RemoteAddr. The router's RealIP middleware
// has already resolved proxy headers by the time this runs.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
