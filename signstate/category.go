// Package signstate reduces per-frame road detections into a sticky panel state:
// the last seen sign, speed limit and traffic-light colour.
package signstate

// Category is one of the tracked panel slots
type Category int

const (
	Sign Category = iota
	SpeedLimit
	TrafficLight
)

// Categories lists every slot in panel order (SIGN, SPEED, LIGHT)
var Categories = [...]Category{Sign, SpeedLimit, TrafficLight}

// String returns the panel header for the category
func (c Category) String() string {
	switch c {
	case Sign:
		return "SIGN"
	case SpeedLimit:
		return "SPEED"
	case TrafficLight:
		return "LIGHT"
	default:
		return "UNKNOWN"
	}
}

// Value is a category-specific reading such as "Stop", "60" or "Red"
type Value string

// Unset marks a slot with nothing observed yet
const Unset Value = "-"

// IsSet reports whether v carries a real reading
func (v Value) IsSet() bool {
	return v != Unset && v != ""
}

// slots is the fixed three-slot record shared by CycleResult and State
type slots struct {
	Sign  Value
	Speed Value
	Light Value
}

func unsetSlots() slots {
	return slots{Sign: Unset, Speed: Unset, Light: Unset}
}

func (s *slots) ref(c Category) *Value {
	switch c {
	case Sign:
		return &s.Sign
	case SpeedLimit:
		return &s.Speed
	case TrafficLight:
		return &s.Light
	}
	return nil
}

// Get returns the value held for category c, or Unset for an unknown category
func (s slots) Get(c Category) Value {
	if v := s.ref(c); v != nil && *v != "" {
		return *v
	}
	return Unset
}

// Values returns the slots in panel order
func (s slots) Values() [3]Value {
	return [3]Value{s.Get(Sign), s.Get(SpeedLimit), s.Get(TrafficLight)}
}
