package signstate

import "time"

// DefaultInterval is the wall-clock spacing between aggregation passes
const DefaultInterval = 500 * time.Millisecond

// Scheduler gates aggregation to a fixed cadence, independent of frame rate.
// It only holds a deadline; the caller supplies the current time.
type Scheduler struct {
	interval time.Duration
	deadline time.Time
}

// NewScheduler creates a scheduler whose first pass is due one interval after start
func NewScheduler(interval time.Duration, start time.Time) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		deadline: start.Add(interval),
	}
}

// Interval returns the configured spacing between passes
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Deadline returns the time the next pass becomes due
func (s *Scheduler) Deadline() time.Time {
	return s.deadline
}

// Due reports whether the deadline has been reached
func (s *Scheduler) Due(now time.Time) bool {
	return !now.Before(s.deadline)
}

// Reset pushes the deadline one interval past now
func (s *Scheduler) Reset(now time.Time) {
	s.deadline = now.Add(s.interval)
}

// Step runs fn and resets the deadline when a pass is due. It reports whether fn ran.
func (s *Scheduler) Step(now time.Time, fn func()) bool {
	if !s.Due(now) {
		return false
	}
	fn()
	s.Reset(now)
	return true
}
