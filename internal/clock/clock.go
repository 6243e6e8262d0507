// Package clock abstracts the wall clock so timestamps are testable.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system time.
type Real struct{}

// Now returns time.Now in UTC.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// New returns a Clock backed by the system time.
func New() Clock {
	return Real{}
}

// Manual is a Clock that only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock frozen at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now returns the frozen time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
