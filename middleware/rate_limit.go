package middleware

import (
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/upb/sorobai/backend/utils"
)

// clientIdleTTL is how long an unused client bucket is kept
const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles the generation endpoints per client. Authenticated
// callers are keyed by token subject, everyone else by address.
type RateLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
	now       func() time.Time

	logger *zap.Logger
}

// NewRateLimiter creates a per-client limiter. rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
		logger:  logger,
	}
}

// Enabled reports whether requests are throttled
func (l *RateLimiter) Enabled() bool {
	return l != nil && l.rps > 0
}

// Limit rejects requests over the client's budget with 429
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := clientKey(r)
		if !l.allow(key) {
			l.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client", key))
			retry := int(math.Ceil(1 / float64(l.rps)))
			_ = utils.WriteTooManyRequests(w, "Too many requests, retry later", retry)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > clientIdleTTL {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > clientIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// size returns the number of tracked buckets
func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func clientKey(r *http.Request) string {
	if claims := GetClaimsFromContext(r.Context()); claims != nil && claims.Sub != "" {
		return "sub:" + claims.Sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
