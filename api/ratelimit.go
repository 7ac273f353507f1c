package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// authRateLimiter throttles credential endpoints per client address. It
// replaces account lockout: a brute-force client gets slowed down without
// letting an attacker lock a victim out of their own account.
type authRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rps       rate.Limit
	burst     int
	retention time.Duration
	sweepGap  time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newAuthRateLimiter(rps rate.Limit, burst int) *authRateLimiter {
	return &authRateLimiter{
		clients:   make(map[string]*clientLimiter),
		rps:       rps,
		burst:     burst,
		retention: 10 * time.Minute,
		sweepGap:  time.Minute,
		lastSweep: time.Now(),
	}
}

func (l *authRateLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Pruning piggybacks on request traffic so an idle limiter holds no
	// goroutine and an abandoned one is collectable.
	if now.Sub(l.lastSweep) > l.sweepGap {
		l.sweepLocked(now)
		l.lastSweep = now
	}

	client, ok := l.clients[host]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[host] = client
	}
	client.seen = now
	return client.limiter.Allow()
}

// sweepLocked drops limiters for clients idle past the retention window.
// Callers must hold mu.
func (l *authRateLimiter) sweepLocked(now time.Time) {
	for host, client := range l.clients {
		if now.Sub(client.seen) > l.retention {
			delete(l.clients, host)
		}
	}
}

func (l *authRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.RemoteAddr) {
			writeJSON(w, http.StatusTooManyRequests, envelope{Success: false, Message: "too many attempts, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
