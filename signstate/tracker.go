package signstate

import "time"

// Tracker owns the persistent state and the cadence that updates it.
// It is driven from a single loop and is not safe for concurrent use.
type Tracker struct {
	state     State
	scheduler *Scheduler
	cycles    int64
}

// NewTracker creates a tracker with an all-Unset state
func NewTracker(interval time.Duration, start time.Time) *Tracker {
	return &Tracker{
		state:     NewState(),
		scheduler: NewScheduler(interval, start),
	}
}

// Observe offers one frame's detections. When a pass is due they are aggregated
// and folded into the state; otherwise they are dropped. It returns the current
// state and whether a pass ran.
func (t *Tracker) Observe(now time.Time, observations []Observation) (State, bool) {
	ran := t.scheduler.Step(now, func() {
		t.state = t.state.Apply(Aggregate(observations))
		t.cycles++
	})
	return t.state, ran
}

// State returns the current persistent state
func (t *Tracker) State() State {
	return t.state
}

// Cycles returns how many aggregation passes have run
func (t *Tracker) Cycles() int64 {
	return t.cycles
}

// Scheduler exposes the cadence, mainly for logging the next deadline
func (t *Tracker) Scheduler() *Scheduler {
	return t.scheduler
}
