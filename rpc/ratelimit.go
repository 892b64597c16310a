package rpc

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles every /v1 request per authenticated caller, the
// transport-level counterpart to the engine's own velocity window: the
// engine bounds proposal creation per proposer, this bounds raw request
// volume against the transport regardless of which method is called.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter constructs a limiter allowing rps requests per second per
// caller key, with the given burst allowance.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Middleware keys the limiter by the authenticated caller address, falling
// back to the remote IP for unauthenticated routes.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if caller, ok := CallerFromContext(r.Context()); ok {
			key = caller.String()
		}
		if !l.limiterFor(key).Allow() {
			http.Error(w, "rpc: rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
