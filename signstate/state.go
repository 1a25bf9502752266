package signstate

import "fmt"

// State is the last-known-good reading per category. Once a slot is set it is
// only ever replaced by another real value, never cleared.
type State struct {
	slots
}

// NewState returns the start-of-process state with every category Unset
func NewState() State {
	return State{slots: unsetSlots()}
}

// Apply folds a cycle into the state and returns the new state. Categories the
// cycle did not observe keep their previous value.
func (s State) Apply(cycle CycleResult) State {
	next := s
	for _, c := range Categories {
		if v := cycle.Get(c); v.IsSet() {
			*next.ref(c) = v
		}
	}
	return next
}

// Changed reports whether any category differs between s and other
func (s State) Changed(other State) bool {
	return s.Values() != other.Values()
}

// String renders the state as "SIGN=Stop SPEED=- LIGHT=Red"
func (s State) String() string {
	return fmt.Sprintf("%s=%s %s=%s %s=%s",
		Sign, s.Get(Sign), SpeedLimit, s.Get(SpeedLimit), TrafficLight, s.Get(TrafficLight))
}
