// internal/clock/clock.go
//
// Time source and timer scheduling for the game runtime.
// The engine never calls time.AfterFunc directly; it goes through a Clock
// so tests can drive reveal delays, ticks and the completion announcement
// with a virtual clock (see Fake).

package clock

import "time"

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once, d from now. The returned Timer cancels it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

// Now returns the current time using the system clock.
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on its own goroutine via time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
