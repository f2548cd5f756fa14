package services

import "time"

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
)

// LockoutPolicy decides when repeated authentication failures lock an agent.
// It holds no state; callers persist the counter and expiry it returns.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks after five failures for fifteen minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: defaultLockoutThreshold, Duration: defaultLockoutDuration}
}

func (p LockoutPolicy) withDefaults() LockoutPolicy {
	if p.Threshold <= 0 {
		p.Threshold = defaultLockoutThreshold
	}
	if p.Duration <= 0 {
		p.Duration = defaultLockoutDuration
	}
	return p
}

// IsLocked reports whether lockedUntil is set and still in the future.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// Expired reports whether a lock was set but has elapsed. The caller must then
// clear the lock and the counter.
func (p LockoutPolicy) Expired(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && !lockedUntil.After(now)
}

// OnFailedAttempt increments the counter and returns the lock expiry to store,
// which is nil below the threshold.
func (p LockoutPolicy) OnFailedAttempt(failedLoginCount int, now time.Time) (int, *time.Time) {
	next := failedLoginCount + 1
	return next, p.LockFor(next, now)
}

// LockFor returns the lock expiry for an already incremented counter.
func (p LockoutPolicy) LockFor(attempts int, now time.Time) *time.Time {
	p = p.withDefaults()
	if attempts < p.Threshold {
		return nil
	}
	until := now.Add(p.Duration)
	return &until
}

// OnSuccessOrReset returns the cleared counter and lock.
func (p LockoutPolicy) OnSuccessOrReset() (int, *time.Time) {
	return 0, nil
}
