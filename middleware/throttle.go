package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	throttleIdleTTL    = 10 * time.Minute
	throttleSweepAbove = 4096
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipThrottle holds one token bucket per client IP.
type ipThrottle struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]*ipEntry
}

func newIPThrottle(rps float64, burst int) *ipThrottle {
	return &ipThrottle{
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		entries: make(map[string]*ipEntry),
	}
}

func (t *ipThrottle) limiter(ip string) *rate.Limiter {
	now := t.now()

	t.mu.RLock()
	e, ok := t.entries[ip]
	t.mu.RUnlock()
	if ok {
		t.mu.Lock()
		e.lastSeen = now
		t.mu.Unlock()
		return e.limiter
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double-check after acquiring write lock
	if e, ok = t.entries[ip]; ok {
		e.lastSeen = now
		return e.limiter
	}
	if len(t.entries) >= throttleSweepAbove {
		t.sweepLocked(now)
	}
	e = &ipEntry{limiter: rate.NewLimiter(t.rps, t.burst), lastSeen: now}
	t.entries[ip] = e
	return e.limiter
}

func (t *ipThrottle) sweepLocked(now time.Time) {
	for ip, e := range t.entries {
		if now.Sub(e.lastSeen) > throttleIdleTTL {
			delete(t.entries, ip)
		}
	}
}

// IPThrottle limits each client IP to rps requests per second with the
// given burst. Handlers wrapped by the same returned middleware share one
// bucket per IP. A non-positive burst disables it.
func IPThrottle(rps float64, burst int) func(http.Handler) http.Handler {
	t := newIPThrottle(rps, burst)
	return func(next http.Handler) http.Handler {
		if burst <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.limiter(ClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeDetail(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
