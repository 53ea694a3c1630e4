package app

import (
	"sync"
	"time"

	"github.com/dkeye/groupcall/internal/domain"
)

// RateLimiter is a sliding-window limiter keyed by the name of a live
// session. Callers Forget a name when its session ends.
type RateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserName][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[domain.UserName][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(name domain.UserName) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[name]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[name] = fresh
		return false
	}
	rl.history[name] = append(fresh, now)
	return true
}

// Forget drops the history of name, e.g. when its session ends.
func (rl *RateLimiter) Forget(name domain.UserName) {
	rl.mu.Lock()
	delete(rl.history, name)
	rl.mu.Unlock()
}
