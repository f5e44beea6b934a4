package clock

import "time"

const layout = "2006-01-02T15:04:05Z"

// Now returns the current UTC time formatted for API response timestamps.
func Now() string {
	return time.Now().UTC().Format(layout)
}

// Clock abstracts time for components that schedule or expire things,
// so tests can drive timers deterministically with Manual.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// System returns the wall-clock implementation.
func System() Clock { return systemClock{} }
