package session

import "time"

// Clock is the time source used for expiry math and renewal timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RenewalDelay returns how long to wait before renewing a token that expires
// at expiresAt. The result is never below minimum, which also covers tokens
// that are already expired.
func RenewalDelay(now, expiresAt time.Time, buffer, minimum time.Duration) time.Duration {
	if expiresAt.IsZero() {
		return minimum
	}
	delay := expiresAt.Sub(now) - buffer
	if delay < minimum {
		return minimum
	}
	return delay
}
