package ocean

import "time"

// Clock accumulates simulated time. The zero value is a running clock at
// time zero with unit speed.
type Clock struct {
	elapsed time.Duration
	paused  bool
	scale   float64
}

// Advance adds dt (scaled by the clock speed) unless the clock is paused,
// and returns the new elapsed time. Negative steps are ignored.
func (c *Clock) Advance(dt time.Duration) time.Duration {
	if c.paused || dt <= 0 {
		return c.elapsed
	}

	if c.scale != 0 && c.scale != 1 {
		dt = time.Duration(float64(dt) * c.scale)
	}

	c.elapsed += dt

	return c.elapsed
}

// Elapsed returns the simulated time.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// Seconds returns the simulated time in seconds.
func (c *Clock) Seconds() float64 { return c.elapsed.Seconds() }

func (c *Clock) Pause()       { c.paused = true }
func (c *Clock) Resume()      { c.paused = false }
func (c *Clock) Paused() bool { return c.paused }

// Toggle flips between paused and running and reports the new state.
func (c *Clock) Toggle() bool {
	c.paused = !c.paused
	return c.paused
}

// SetSpeed sets the rate of simulated time relative to wall time.
// Non-positive values are ignored.
func (c *Clock) SetSpeed(s float64) {
	if s > 0 {
		c.scale = s
	}
}

// Reset rewinds to time zero without changing pause state or speed.
func (c *Clock) Reset() { c.elapsed = 0 }
