// Package clock provides the server timestamp source. Every committed
// mutation is stamped here, which is what makes updated_at usable both as
// the incremental sync cursor and as the conflict detection version: two
// writes can never share a timestamp, and a later write always carries a
// later one, even if the wall clock steps backwards.
package clock

import (
	"sync"
	"time"
)

// Clock issues strictly increasing UTC timestamps.
type Clock struct {
	now  func() time.Time
	last time.Time
	mu   sync.Mutex
}

// New creates a clock backed by the system wall clock.
func New() *Clock {
	return &Clock{now: time.Now}
}

// NewWithNow creates a clock with a custom time source. Used in tests.
func NewWithNow(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns a timestamp strictly greater than every timestamp previously
// returned or observed. If the wall clock has not advanced past the last
// issued timestamp, the result is bumped by one microsecond.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Observe advances the clock past a timestamp recovered from storage.
// Called once at startup with the maximum persisted updated_at so that
// timestamps keep increasing across restarts.
func (c *Clock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.UTC()
	if t.After(c.last) {
		c.last = t
	}
}

// Last returns the most recently issued or observed timestamp.
func (c *Clock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
