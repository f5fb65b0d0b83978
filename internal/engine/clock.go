package engine

import "time"

// Clock supplies discovery time. Production uses SystemClock; tests pin it
// so that cycles are reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
