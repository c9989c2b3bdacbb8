package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// maxTrackedClients bounds the number of per-client buckets kept in memory
const maxTrackedClients = 4096

// tokenBucket implements token bucket rate limiting
type tokenBucket struct {
	rate       float64 // tokens per second
	burst      float64 // maximum burst size
	tokens     float64 // current tokens
	lastUpdate time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		rate:       rate,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastUpdate: now,
	}
}

// allow refills the bucket for the elapsed time and takes one token
func (b *tokenBucket) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RateLimiter throttles requests per client address. The least recently
// seen clients are evicted once maxTrackedClients is reached.
type RateLimiter struct {
	rate    float64
	burst   int
	buckets *lru.Cache
	now     func() time.Time
	mu      sync.Mutex
}

// NewRateLimiter creates a limiter allowing rate requests per second with
// the given burst
func NewRateLimiter(rate float64, burst int) (*RateLimiter, error) {
	cache, err := lru.New(maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		rate:    rate,
		burst:   burst,
		buckets: cache,
		now:     time.Now,
	}, nil
}

// Allow checks if a request from client is allowed
func (rl *RateLimiter) Allow(client string) bool {
	now := rl.now()

	rl.mu.Lock()
	var bucket *tokenBucket
	if v, ok := rl.buckets.Get(client); ok {
		bucket = v.(*tokenBucket)
	} else {
		bucket = newTokenBucket(rl.rate, rl.burst, now)
		rl.buckets.Add(client, bucket)
	}
	rl.mu.Unlock()

	return bucket.allow(now)
}

// Reset forgets every client
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.buckets.Purge()
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	return rl.buckets.Len()
}

// clientAddress returns the host part of the request's remote address
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddress(r)
		if !s.limiter.Allow(client) {
			s.metrics.IncRateLimited()
			s.audit.LogRateLimitExceeded(client)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
