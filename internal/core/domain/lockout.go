package domain

import "time"

// LockoutState is the per-identifier throttling state.
type LockoutState string

const (
	LockoutClear  LockoutState = "clear"
	LockoutWarned LockoutState = "warned"
	LockoutLocked LockoutState = "locked"
)

// LockoutPolicy holds the thresholds and timings of the login tracker.
type LockoutPolicy struct {
	WarnThreshold   int
	LockThreshold   int
	LockoutDuration time.Duration
	FailureWindow   time.Duration
	DelayAfter      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
}

// LoginAttemptRecord tracks failed sign-in attempts for a normalized identifier.
type LoginAttemptRecord struct {
	Identifier    string
	FailureCount  int
	LastFailureAt time.Time
	LockedUntil   *time.Time
}

// LockActive reports whether the lock window is still open at now.
func (r LoginAttemptRecord) LockActive(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// LockElapsed reports whether a lock was set and has already expired at now.
func (r LoginAttemptRecord) LockElapsed(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// Stale reports whether the failures fell out of the counting window at now.
func (r LoginAttemptRecord) Stale(now time.Time, policy LockoutPolicy) bool {
	if policy.FailureWindow <= 0 || r.LastFailureAt.IsZero() || r.LockActive(now) {
		return false
	}
	return now.Sub(r.LastFailureAt) >= policy.FailureWindow
}

// WithFailure returns the record after one more failure at the given time, and
// whether this failure opened a new lock. A lock that already elapsed restarts
// the count.
func (r LoginAttemptRecord) WithFailure(at time.Time, policy LockoutPolicy) (LoginAttemptRecord, bool) {
	next := r
	if next.LockElapsed(at) || next.Stale(at, policy) {
		next.FailureCount = 0
		next.LockedUntil = nil
	}
	next.FailureCount++
	next.LastFailureAt = at

	if next.LockedUntil == nil && policy.LockThreshold > 0 && next.FailureCount >= policy.LockThreshold {
		until := at.Add(policy.LockoutDuration)
		next.LockedUntil = &until
		return next, true
	}
	return next, false
}

// SecurityStatus is the read-only view of an identifier's throttling state.
type SecurityStatus struct {
	State             LockoutState  `json:"state"`
	Locked            bool          `json:"locked"`
	FailureCount      int           `json:"failure_count"`
	RemainingAttempts int           `json:"remaining_attempts"`
	RemainingLockTime time.Duration `json:"-"`
}

// RemainingLockSeconds rounds the remaining lock time up to whole seconds.
func (s SecurityStatus) RemainingLockSeconds() int {
	return ceilSeconds(s.RemainingLockTime)
}

// LoginDelay is the soft throttle applied before the hard lock.
type LoginDelay struct {
	Delay     bool          `json:"delay"`
	Remaining time.Duration `json:"-"`
}

// Seconds rounds the remaining delay up to whole seconds.
func (d LoginDelay) Seconds() int {
	return ceilSeconds(d.Remaining)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
