package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"folio/internal/errors"
)

const (
	defaultIdleTTL         = 10 * time.Minute
	defaultCleanupInterval = time.Minute
)

// RateLimitStats counts decisions for one client within the current window
type RateLimitStats struct {
	Allowed   int64
	Limited   int64
	LastReset time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	stats    RateLimitStats
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key.
// Clients idle for longer than the idle TTL are forgotten.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	window  time.Duration
	idleTTL time.Duration
	now     func() time.Time

	stopChan chan struct{}
	stopped  bool
}

// NewRateLimiter allows requestsPerMinute per key with the given burst and
// starts the idle-client cleanup loop. Close stops it.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	rl := &RateLimiter{
		clients:  make(map[string]*clientLimiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		window:   time.Minute,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	go rl.cleanupLoop(defaultCleanupInterval)
	return rl
}

func (rl *RateLimiter) client(key string, now time.Time) *clientLimiter {
	if client, exists := rl.clients[key]; exists {
		return client
	}

	client := &clientLimiter{
		limiter: rate.NewLimiter(rl.limit, rl.burst),
		stats:   RateLimitStats{LastReset: now},
	}
	rl.clients[key] = client
	return client
}

// Allow reports whether key may make another request now
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client := rl.client(key, now)
	client.lastSeen = now

	allowed := client.limiter.AllowN(now, 1)

	stats := &client.stats
	if now.Sub(stats.LastReset) >= rl.window {
		stats.Allowed = 0
		stats.Limited = 0
		stats.LastReset = now
	}
	if allowed {
		stats.Allowed++
	} else {
		stats.Limited++
	}

	return allowed
}

// GetStats returns a copy of the stats for key
func (rl *RateLimiter) GetStats(key string) (RateLimitStats, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	client, ok := rl.clients[key]
	if !ok {
		return RateLimitStats{}, false
	}
	return client.stats, true
}

// Clients returns the number of tracked client keys
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopChan:
			return
		}
	}
}

// cleanup drops clients not seen within the idle TTL
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	removed := 0
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Close stops the cleanup loop
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.stopped {
		close(rl.stopChan)
		rl.stopped = true
	}
}

// Middleware rejects clients over their budget with 429
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			AbortWithError(c, errors.NewAppError(errors.ErrCodeRateLimit, "Rate limit exceeded", nil).
				WithContext("client_ip", c.ClientIP()))
			return
		}
		c.Next()
	}
}
