package lifecycle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// cooldown allows one event per key per interval
type cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*keyLimiter
}

type keyLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

func newCooldown(interval time.Duration) *cooldown {
	return &cooldown{
		interval: interval,
		limiters: make(map[string]*keyLimiter),
	}
}

// Allow reports whether an event for key may fire at now
func (c *cooldown) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interval <= 0 {
		return true
	}

	kl, ok := c.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(rate.Every(c.interval), 1)}
		c.limiters[key] = kl
	}

	if !kl.limiter.AllowN(now, 1) {
		return false
	}
	kl.last = now
	return true
}

// Prune forgets keys whose cooldown has fully elapsed
func (c *cooldown) Prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, kl := range c.limiters {
		if now.Sub(kl.last) >= c.interval {
			delete(c.limiters, key)
		}
	}
}

func (c *cooldown) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}
