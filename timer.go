package dynip

import (
	"time"
)

const (
	// IPUpdateInterval is how often an update is sent when the IP has not changed.
	IPUpdateInterval = 3 * time.Hour
	// SoftwareCheckInterval is how often we ask whether a newer version exists.
	SoftwareCheckInterval = 24 * time.Hour
)

// Clock returns milliseconds elapsed since an arbitrary origin.
type Clock func() uint64

// MonotonicClock returns a Clock that counts from the moment it was created.
func MonotonicClock() Clock {
	start := time.Now()
	return func() uint64 {
		return uint64(time.Since(start).Milliseconds())
	}
}

// Timer remembers when an action last happened.
//
// Clock sources may go backwards (a 32-bit tick counter wraps every ~49.7 days, a wall clock can be stepped).
// Whenever now is earlier than the stored time the timer resets itself to now
// and reports that nothing is due yet.
// The zero value has never fired.
type Timer struct {
	last uint64
}

// Reset records now as the last time the action happened.
func (t *Timer) Reset(now uint64) { t.last = now }

// Elapsed returns the time since the last action.
func (t *Timer) Elapsed(now uint64) time.Duration {
	if t.rewound(now) {
		return 0
	}
	return time.Duration(now-t.last) * time.Millisecond
}

// Due reports whether strictly more than interval has passed since the last action.
func (t *Timer) Due(now uint64, interval time.Duration) bool {
	if t.rewound(now) {
		return false
	}
	return now > t.last+uint64(interval.Milliseconds())
}

func (t *Timer) rewound(now uint64) bool {
	if now < t.last {
		t.last = now
		return true
	}
	return false
}
