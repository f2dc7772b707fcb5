package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const maxBodySize = 1 << 20 // 1MB

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// runLimiter throttles expensive trigger endpoints per client IP. Entries
// are pruned inline once the map grows past pruneAbove, so no janitor
// goroutine is needed.
type runLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	every   time.Duration
	burst   int
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

const (
	pruneAbove = 64

	// Generation and sync triggers are expensive; three quick triggers
	// then one every six seconds per client.
	runTriggerEvery = 6 * time.Second
	runTriggerBurst = 3
)

func newRunLimiter(every time.Duration, burst int) *runLimiter {
	return &runLimiter{
		clients: make(map[string]*limiterEntry),
		every:   every,
		burst:   burst,
	}
}

func (rl *runLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if len(rl.clients) > pruneAbove {
		for k, e := range rl.clients {
			if now.Sub(e.seen) > 10*time.Minute {
				delete(rl.clients, k)
			}
		}
	}

	e, ok := rl.clients[ip]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.clients[ip] = e
	}
	e.seen = now
	return e.lim.Allow()
}

func (rl *runLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
