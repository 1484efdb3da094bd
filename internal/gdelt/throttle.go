package gdelt

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle enforces a minimum interval between GDELT searches. It refuses
// instead of waiting so callers can tell users how long to back off.
// A Throttle is owned by whoever constructs it and is safe for concurrent use.
type Throttle struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewThrottle allows one search per interval. A non-positive interval disables it.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Acquire takes the next slot. When it is too early it returns the
// remaining wait and false, and the slot is left untouched.
func (t *Throttle) Acquire() (time.Duration, bool) {
	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0, false
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return wait, false
	}
	return 0, true
}
