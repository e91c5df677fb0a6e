// Package clock abstracts the wall clock so ledger and dispatch logic never
// call time.Now directly and tests can pin the current instant.
package clock

import "time"

// Clock is a source of the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }
