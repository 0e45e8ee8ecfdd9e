package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// GlobalRateLimitRPS and GlobalRateLimitBurst apply to every route.
	GlobalRateLimitRPS   = 5
	GlobalRateLimitBurst = 20

	// Each review costs a completion call, so /review gets its own tighter budget.
	ReviewRateLimitEvery = 10 * time.Second
	ReviewRateLimitBurst = 3

	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// RateLimiter hands out one token bucket per client key. Buckets idle for longer than
// limiterTTL are dropped by Sweep.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	keyFunc func(*http.Request) string
	message string

	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

// NewRateLimiter builds a limiter keyed by keyFunc, usually a client IP resolver.
func NewRateLimiter(limit rate.Limit, burst int, keyFunc func(*http.Request) string, message string) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		burst:   burst,
		keyFunc: keyFunc,
		message: message,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// GlobalRateLimiter limits each client to GlobalRateLimitRPS with GlobalRateLimitBurst.
func GlobalRateLimiter(keyFunc func(*http.Request) string) *RateLimiter {
	return NewRateLimiter(rate.Limit(GlobalRateLimitRPS), GlobalRateLimitBurst, keyFunc,
		"Too many requests. Please slow down.")
}

// ReviewRateLimiter is the stricter limiter for review generation.
func ReviewRateLimiter(keyFunc func(*http.Request) string) *RateLimiter {
	return NewRateLimiter(rate.Every(ReviewRateLimitEvery), ReviewRateLimitBurst, keyFunc,
		"Too many review requests. Please try again later.")
}

// Allow reports whether the client behind key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = l.now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep drops buckets that have not been used for limiterTTL.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, e := range l.entries {
		if now.Sub(e.lastUse) > limiterTTL {
			delete(l.entries, key)
		}
	}
}

// Len is the number of tracked clients.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RunCleanup sweeps idle buckets until done is closed.
func (l *RateLimiter) RunCleanup(done <-chan struct{}) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-done:
			return
		}
	}
}

// Handler returns 429 with the JSON envelope once the client's bucket is empty.
func (l *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.keyFunc(r)) {
			writeJSONError(w, http.StatusTooManyRequests, l.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
