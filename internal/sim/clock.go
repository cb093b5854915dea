package sim

import (
	"time"

	"github.com/ashita-ai/dandori/internal/calendar"
)

// Clock is the engine's simulated-time source. All time reads inside the
// engine go through it; it is never ambient global state. Time only moves
// forward, driven by the wake queue.
type Clock struct {
	start time.Time
	now   time.Time
}

// NewClock starts simulated time at the given instant, normalized to UTC
// midnight.
func NewClock(start time.Time) *Clock {
	d := calendar.DateOf(start)
	return &Clock{start: d, now: d}
}

// Start returns day zero of the simulation.
func (c *Clock) Start() time.Time { return c.start }

// Now returns the current simulated time.
func (c *Clock) Now() time.Time { return c.now }

// Horizon converts a day count into an absolute simulated instant.
func (c *Clock) Horizon(days int) time.Time {
	return c.start.AddDate(0, 0, days)
}

// advanceTo moves simulated time forward. Moving backward is a scheduler bug;
// the clock clamps rather than rewinds.
func (c *Clock) advanceTo(t time.Time) {
	if t.After(c.now) {
		c.now = t
	}
}
