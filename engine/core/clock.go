package core

import "time"

// Clock measures wall time for the render loop, mainly how long a full
// accumulation takes.
type Clock struct {
	startTime time.Time
}

func NewClock() *Clock {
	return &Clock{}
}

// Start resets the clock to now.
func (c *Clock) Start() {
	c.startTime = time.Now()
}

// Elapsed returns the time since Start. Zero for a clock never started.
func (c *Clock) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}
