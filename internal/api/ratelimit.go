package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedLogins bounds the limiter map; idle buckets are dropped beyond it.
const maxTrackedLogins = 10000

// loginLimiter applies a token bucket per username to login attempts.
// A zero rate disables limiting.
type loginLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newLoginLimiter(perMinute, burst int) *loginLimiter {
	l := &loginLimiter{now: time.Now, buckets: make(map[string]*rate.Limiter)}
	if perMinute <= 0 {
		l.limit = rate.Inf
		return l
	}
	if burst <= 0 {
		burst = 1
	}
	l.limit = rate.Every(time.Minute / time.Duration(perMinute))
	l.burst = burst
	return l
}

// allow consumes one attempt for username. When refused it also returns how long
// until the next attempt is permitted.
func (l *loginLimiter) allow(username string) (bool, time.Duration) {
	if l.limit == rate.Inf {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[username]
	if !ok {
		if len(l.buckets) >= maxTrackedLogins {
			l.pruneLocked(now)
		}
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[username] = b
	}

	r := b.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// pruneLocked drops buckets that have refilled completely; they carry no state.
func (l *loginLimiter) pruneLocked(now time.Time) {
	for name, b := range l.buckets {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, name)
		}
	}
}
