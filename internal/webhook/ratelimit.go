package webhook

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateGuard throttles inbound webhook calls per sender. A runaway
// sender (or a Twilio retry storm) gets 429s instead of stacking up
// oracle calls.
type RateGuard struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	perSecond float64
	burst     int
}

// NewRateGuard creates a per-sender guard.
func NewRateGuard(perSecond float64, burst int) *RateGuard {
	return &RateGuard{
		limiters:  make(map[string]*rate.Limiter),
		perSecond: perSecond,
		burst:     burst,
	}
}

// Allow reports whether a request from the sender may proceed.
func (g *RateGuard) Allow(sender string) bool {
	return g.limiterFor(sender).Allow()
}

func (g *RateGuard) limiterFor(sender string) *rate.Limiter {
	g.mu.RLock()
	l, ok := g.limiters[sender]
	g.mu.RUnlock()
	if ok {
		return l
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[sender]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(g.perSecond), g.burst)
	g.limiters[sender] = l
	return l
}
