// Package system provides the wall clock used to stamp visitor records.
package system

import "time"

// Clock returns UTC time at the millisecond precision visitor rows store.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to milliseconds.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
