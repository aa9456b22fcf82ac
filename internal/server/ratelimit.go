package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RequestRateLimiter applies a token bucket per client IP.
type RequestRateLimiter struct {
	mu              sync.Mutex
	limiters        map[string]*ipLimiter
	limit           rate.Limit
	burst           int
	idleTTL         time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRequestRateLimiter allows perMinute requests per IP, with bursts of up to perMinute.
// A perMinute of 0 disables limiting.
func NewRequestRateLimiter(perMinute int) *RequestRateLimiter {
	rl := &RequestRateLimiter{
		limiters:        make(map[string]*ipLimiter),
		limit:           rate.Inf,
		burst:           perMinute,
		idleTTL:         10 * time.Minute,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the cleanup goroutine.
func (rl *RequestRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// Allow reports whether a request from ip may proceed now.
func (rl *RequestRateLimiter) Allow(ip string) bool {
	if rl.limit == rate.Inf {
		return true
	}

	rl.mu.Lock()
	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Tracked returns the number of IPs with a live bucket.
func (rl *RequestRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RequestRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

// cleanup drops buckets idle for longer than idleTTL.
func (rl *RequestRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.idleTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}
