package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type bucket struct {
	windowStart time.Time
	count       int
}

// RateLimiter is a coarse per-IP fixed-window limiter for the
// unauthenticated surface. The credit gate handles chat quota; this only
// blunts abuse.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go rl.sweep()
	return rl
}

// sweep drops buckets whose window has long passed.
func (rl *RateLimiter) sweep() {
	for {
		time.Sleep(rl.window)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.windowStart) > 2*rl.window {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow counts one request for ip and reports whether it is within the
// window limit.
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok || now.Sub(b.windowStart) > rl.window {
		rl.buckets[ip] = &bucket{windowStart: now, count: 1}
		return true
	}

	b.count++
	return b.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr still carries the ephemeral port when no proxy header
		// rewrote it; limit per host, not per connection.
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}

		next.ServeHTTP(w, r)
	})
}
