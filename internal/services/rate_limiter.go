package services

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TriggerRateLimiter limits how often each caller may start a pipeline run
type TriggerRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perMin   int
}

// NewTriggerRateLimiter allows perMinute triggers per caller, as a burst that
// refills evenly over the minute
func NewTriggerRateLimiter(perMinute int) *TriggerRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &TriggerRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMinute,
	}
}

// Allow checks if the caller may trigger another run now
func (rl *TriggerRateLimiter) Allow(caller string) error {
	rl.mu.Lock()
	l, ok := rl.limiters[caller]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMin)), rl.perMin)
		rl.limiters[caller] = l
	}
	rl.mu.Unlock()

	if !l.Allow() {
		return fmt.Errorf("rate limit exceeded: maximum %d pipeline runs per minute", rl.perMin)
	}
	return nil
}

// GetStats returns rate limiter statistics
func (rl *TriggerRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"tracked_callers": len(rl.limiters),
		"per_minute":      rl.perMin,
	}
}
