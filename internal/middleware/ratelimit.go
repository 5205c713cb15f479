package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures RateLimit. Each client address gets its own
// token bucket; buckets idle for ExpiresIn are forgotten.
type RateLimiterConfig struct {
	Rate      rate.Limit
	Burst     int
	ExpiresIn time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterStore struct {
	cfg RateLimiterConfig
	now func() time.Time

	mu          sync.Mutex
	visitors    map[string]*visitor
	lastCleanup time.Time
}

func newLimiterStore(cfg RateLimiterConfig) *limiterStore {
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.Rate)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.ExpiresIn <= 0 {
		cfg.ExpiresIn = 3 * time.Minute
	}
	return &limiterStore{cfg: cfg, now: time.Now, visitors: make(map[string]*visitor)}
}

func (s *limiterStore) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.cfg.Rate, s.cfg.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(s.lastCleanup) > s.cfg.ExpiresIn {
		for k, vv := range s.visitors {
			if now.Sub(vv.lastSeen) > s.cfg.ExpiresIn {
				delete(s.visitors, k)
			}
		}
		s.lastCleanup = now
	}
	return v.limiter.AllowN(now, 1)
}

// RateLimit rejects requests over the configured rate with 429.
func RateLimit(cfg RateLimiterConfig) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.allow(clientKey(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
