package wasm

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// functionRateLimiter enforces a per-(plugin,function) call budget. It is
// built on a token bucket (rate.Limiter) configured with its burst equal
// to the window's call budget and its refill rate equal to budget/window,
// which approximates the fixed-window counter spec describes closely
// enough for a plugin rate guard: a plugin can never sustain more than
// limit calls per window, though the window boundary is smoothed rather
// than a hard reset at t=0,window,2*window,....
type functionRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    int
	window   time.Duration
}

func newFunctionRateLimiter(limit int, window time.Duration) *functionRateLimiter {
	return &functionRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		window:   window,
	}
}

func (f *functionRateLimiter) key(pluginID, function string) string {
	return pluginID + "\x00" + function
}

// Allow reports whether pluginID may call function right now, consuming
// one unit of budget if so.
func (f *functionRateLimiter) Allow(pluginID, function string) bool {
	f.mu.Lock()
	key := f.key(pluginID, function)
	lim, ok := f.limiters[key]
	if !ok {
		perSecond := float64(f.limit) / f.window.Seconds()
		lim = rate.NewLimiter(rate.Limit(perSecond), f.limit)
		f.limiters[key] = lim
	}
	f.mu.Unlock()
	return lim.Allow()
}
