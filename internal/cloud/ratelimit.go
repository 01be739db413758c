package cloud

import (
	"context"
	"sync"
	"time"
)

// Window durations for the two quota constraints.
const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// RateLimiter is an admission gate for outbound cloud API calls.
//
// It enforces two independent sliding windows: at most perMinute requests in
// any trailing 60 seconds, and at most perDay requests in any trailing 24
// hours. Acquire never rejects a call; it delays the caller until both
// windows have capacity or the context is cancelled.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The windows are shared, so
//     every admission is observable to all subsequent callers.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perDay    int
	minute    []time.Time
	day       []time.Time

	// now and sleep are injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a RateLimiter with the given window quotas.
//
// Parameters:
//   - perMinute: Maximum requests in any trailing 60-second window
//   - perDay: Maximum requests in any trailing 24-hour window
func NewRateLimiter(perMinute, perDay int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		perDay:    perDay,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Acquire blocks until one request may be issued under both windows, then
// records it. The only failure path is context cancellation.
//
// Algorithm: prune both windows, admit if both have capacity, otherwise
// compute the wait until the oldest entry of the tightest full window
// expires, sleep, and re-check. The loop is required because multiple
// waiters race for freed capacity.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		rl.prune(now)

		if len(rl.minute) < rl.perMinute && len(rl.day) < rl.perDay {
			rl.minute = append(rl.minute, now)
			rl.day = append(rl.day, now)
			rl.mu.Unlock()
			return nil
		}

		wait := rl.nextFree(now)
		rl.mu.Unlock()

		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// UpdateLimits adopts server-reported quota values without discarding
// recorded timestamps. Non-positive values are ignored so a partial header
// set cannot zero out a window.
func (rl *RateLimiter) UpdateLimits(perMinute, perDay int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if perMinute > 0 {
		rl.perMinute = perMinute
	}
	if perDay > 0 {
		rl.perDay = perDay
	}
}

// RemainingMinute returns how many requests the trailing 60-second window
// can still admit.
func (rl *RateLimiter) RemainingMinute() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(rl.now())
	if n := rl.perMinute - len(rl.minute); n > 0 {
		return n
	}
	return 0
}

// RemainingDay returns how many requests the trailing 24-hour window can
// still admit.
func (rl *RateLimiter) RemainingDay() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(rl.now())
	if n := rl.perDay - len(rl.day); n > 0 {
		return n
	}
	return 0
}

// prune drops timestamps older than each window. Must be called with the
// mutex held and before every admission decision.
func (rl *RateLimiter) prune(now time.Time) {
	rl.minute = pruneBefore(rl.minute, now.Add(-minuteWindow))
	rl.day = pruneBefore(rl.day, now.Add(-dayWindow))
}

// nextFree returns the wait until the tightest full window frees one slot.
// Must be called with the mutex held, after prune.
func (rl *RateLimiter) nextFree(now time.Time) time.Duration {
	var wait time.Duration

	if len(rl.minute) >= rl.perMinute && len(rl.minute) > 0 {
		if d := rl.minute[0].Add(minuteWindow).Sub(now); d > wait {
			wait = d
		}
	}
	if len(rl.day) >= rl.perDay && len(rl.day) > 0 {
		if d := rl.day[0].Add(dayWindow).Sub(now); d > wait {
			wait = d
		}
	}

	// Guard against a zero wait spinning the loop when timestamps sit
	// exactly on the window boundary.
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// pruneBefore returns ts without entries at or before cutoff.
// Timestamps are appended in order, so a single scan suffices.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
