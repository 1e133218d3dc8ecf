package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestRateLimiter_AggregatesPerHostNotPerConnection(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := limitedHandler(rl)

	// Same host, different ephemeral ports: one bucket.
	ports := []string{"10.0.0.1:1111", "10.0.0.1:2222", "10.0.0.1:3333"}
	codes := make([]int, len(ports))
	for i, addr := range ports {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes[i] = rr.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("Expected first two requests allowed, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third request limited, got %d", codes[2])
	}
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := limitedHandler(rl)

	for _, addr := range []string{"10.0.0.1:1111", "10.0.0.2:1111"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Expected first request from %s allowed, got %d", addr, rr.Code)
		}
	}
}

func TestRateLimiter_WindowRollsOver(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	h := limitedHandler(rl)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("Expected first request allowed, got %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("Expected second request limited, got %d", code)
	}

	time.Sleep(20 * time.Millisecond)
	if code := send(); code != http.StatusOK {
		t.Errorf("Expected request allowed after window rollover, got %d", code)
	}
}
