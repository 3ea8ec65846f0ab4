// Package limitx provides a keyed token-bucket rate limiter used to throttle
// credential-guessing surfaces (login, MFA codes) per identity.
package limitx

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting parameters for one surface.
type Config struct {
	// EventsPerWindow is the number of attempts allowed in the time window.
	EventsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows temporary bursts above the steady rate.
	Burst int
}

// LoginLimit is the default profile for password and MFA attempts:
// 5 attempts per minute per key, all available as a burst.
var LoginLimit = Config{
	EventsPerWindow: 5,
	Window:          time.Minute,
	Burst:           5,
}

// Keyed maintains an independent token bucket per key (an email address, a
// user ID). Idle buckets are dropped periodically to bound memory.
type Keyed struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewKeyed builds a Keyed limiter from a Config.
func NewKeyed(cfg Config) *Keyed {
	perSecond := float64(cfg.EventsPerWindow) / cfg.Window.Seconds()
	return &Keyed{
		rate:        rate.Limit(perSecond),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}
}

// Allow reports whether one more event is permitted for key right now.
// An empty key is never limited; callers pass empty when they have no
// sensible identity to group on.
func (k *Keyed) Allow(key string) bool {
	if key == "" {
		return true
	}
	return k.limiter(key).Allow()
}

func (k *Keyed) limiter(key string) *rate.Limiter {
	if l, ok := k.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	l := rate.NewLimiter(k.rate, k.burst)
	actual, _ := k.limiters.LoadOrStore(key, l)

	k.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters that have refilled completely; a full bucket
// means the key has been idle for at least a window.
func (k *Keyed) maybeCleanup() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if time.Since(k.lastCleanup) < 5*time.Minute {
		return
	}
	k.lastCleanup = time.Now()

	k.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(k.burst) {
			k.limiters.Delete(key)
		}
		return true
	})
}
