// Package ratelimit keeps one token bucket per client key so a single caller
// cannot monopolize the answer pipeline. Idle buckets are swept in the
// background.
package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ada-assist/ada/internal/llm/configuration"
)

// CleanupInterval is how often idle limiters are swept.
const CleanupInterval = time.Minute

// ExceededError reports a rejected request and when the caller may retry.
type ExceededError struct {
	Key        string
	Limit      int // requests per minute
	RetryAfter time.Duration
}

// Error implements error.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d requests per minute exceeded, retry after %s", e.Limit, e.RetryAfter)
}

// timedLimiter pairs a bucket with its last access time so idle entries can
// be dropped without taking the write lock on the hot path.
type timedLimiter struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // Unix nanoseconds
}

// Limiter enforces a per-key requests-per-minute budget.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*timedLimiter

	enabled bool
	perMin  int
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	cleanupMu   sync.Mutex
	cleanupStop chan struct{}
	cleanupDone sync.WaitGroup

	logger *slog.Logger
}

// New creates a limiter from cfg. A disabled config or a zero rate yields a
// limiter that admits everything.
func New(cfg configuration.RateLimitConfig) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)

	// An idle bucket is only dropped once it would have refilled anyway, so
	// eviction never hands a throttled client fresh tokens early.
	idleTTL := cfg.IdleTTL
	if limit > 0 {
		refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second))
		if idleTTL < refill {
			idleTTL = refill
		}
	}

	return &Limiter{
		limiters: make(map[string]*timedLimiter),
		enabled:  cfg.Enabled && cfg.RequestsPerMinute > 0,
		perMin:   cfg.RequestsPerMinute,
		limit:    limit,
		burst:    burst,
		idleTTL:  idleTTL,
		logger:   slog.Default().With("component", "ratelimit"),
	}
}

// Enabled reports whether requests are being limited.
func (l *Limiter) Enabled() bool {
	return l.enabled
}

// Check consumes one token for key or returns an *ExceededError carrying
// the delay until a token is available. Rejected calls consume nothing.
func (l *Limiter) Check(key string) error {
	if !l.enabled {
		return nil
	}

	limiter := l.getOrCreate(key)
	if limiter.Allow() {
		return nil
	}

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	retryAfter := time.Duration(math.Ceil(delay.Seconds())) * time.Second
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	l.logger.Debug("request rate limited", "key", key, "retry_after", retryAfter)
	return &ExceededError{Key: key, Limit: l.perMin, RetryAfter: retryAfter}
}

// getOrCreate returns the bucket for key using double-checked locking.
func (l *Limiter) getOrCreate(key string) *rate.Limiter {
	now := time.Now().UnixNano()

	l.mu.RLock()
	if tl, ok := l.limiters[key]; ok {
		// Touch under the read lock so a concurrent sweep cannot drop it first.
		tl.lastUsed.Store(now)
		lim := tl.limiter
		l.mu.RUnlock()
		return lim
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if tl, ok := l.limiters[key]; ok {
		tl.lastUsed.Store(now)
		return tl.limiter
	}

	tl := &timedLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
	tl.lastUsed.Store(now)
	l.limiters[key] = tl
	return tl.limiter
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

// CleanupStale drops limiters not used within the idle TTL before now and
// returns how many were removed.
func (l *Limiter) CleanupStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.idleTTL).UnixNano()
	removed := 0
	for key, tl := range l.limiters {
		if tl.lastUsed.Load() < cutoff {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Start launches the background sweep. It is idempotent.
func (l *Limiter) Start() {
	l.cleanupMu.Lock()
	defer l.cleanupMu.Unlock()

	if l.cleanupStop != nil || !l.enabled {
		return
	}

	l.cleanupStop = make(chan struct{})
	l.cleanupDone.Add(1)
	go l.cleanupLoop(l.cleanupStop)

	l.logger.Info("rate limit cleanup started", "interval", CleanupInterval)
}

// Stop terminates the background sweep and waits for it. It is idempotent.
func (l *Limiter) Stop() {
	l.cleanupMu.Lock()
	defer l.cleanupMu.Unlock()

	if l.cleanupStop == nil {
		return
	}

	close(l.cleanupStop)
	l.cleanupDone.Wait()
	l.cleanupStop = nil
	l.logger.Info("rate limit cleanup stopped")
}

func (l *Limiter) cleanupLoop(stop <-chan struct{}) {
	defer l.cleanupDone.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if removed := l.CleanupStale(now); removed > 0 {
				l.logger.Debug("removed idle rate limiters", "count", removed)
			}
		case <-stop:
			return
		}
	}
}
