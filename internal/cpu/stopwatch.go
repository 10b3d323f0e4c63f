package cpu

import "time"

// Stopwatch accumulates elapsed wall time over several laps.
type Stopwatch struct {
	start   time.Time
	total   time.Duration
	laps    int
	running bool
}

// Start begins a lap. Starting a running stopwatch restarts the lap.
func (s *Stopwatch) Start() {
	s.start = time.Now()
	s.running = true
}

// Stop ends the current lap and returns its duration.
func (s *Stopwatch) Stop() time.Duration {
	if !s.running {
		return 0
	}

	d := time.Since(s.start)
	s.total += d
	s.laps++
	s.running = false

	return d
}

// Total returns the accumulated time of all finished laps.
func (s *Stopwatch) Total() time.Duration { return s.total }

// Laps returns the number of finished laps.
func (s *Stopwatch) Laps() int { return s.laps }

// PerLap returns the mean lap time in seconds, or 0 before the first lap.
func (s *Stopwatch) PerLap() float64 {
	if s.laps == 0 {
		return 0
	}

	return s.total.Seconds() / float64(s.laps)
}
