package bench

import (
	"sync"
	"time"
)

// Clock provides time operations that can be faked in tests.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock uses the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                   { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// FakeClock is a manually advanced clock, safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *FakeClock) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.current = f.current.Add(d)
	f.mu.Unlock()
}
