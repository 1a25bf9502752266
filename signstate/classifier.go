package signstate

import "strings"

// ConfidenceFloor is the exclusive minimum score a detection needs to count
const ConfidenceFloor = 0.5

// Observation is the part of a detection the classifier looks at
type Observation struct {
	ClassName  string
	Confidence float64
}

// Classify maps a resolved class name and its score to a tracked category.
// Rules are checked in order: Stop sign, "Speed Limit NN", Red/Green Light.
// Labels that match a family but are malformed are ignored.
func Classify(className string, confidence float64) (Category, Value, bool) {
	if confidence <= ConfidenceFloor {
		return 0, Unset, false
	}

	switch {
	case strings.Contains(className, "Stop"):
		return Sign, "Stop", true

	case strings.Contains(className, "Speed Limit"):
		// "Speed Limit 60" -> "60"
		parts := strings.Fields(className)
		if len(parts) > 2 && isDigits(parts[2]) {
			return SpeedLimit, Value(parts[2]), true
		}
		return 0, Unset, false

	case className == "Red Light":
		return TrafficLight, "Red", true

	case className == "Green Light":
		return TrafficLight, "Green", true
	}

	return 0, Unset, false
}

// isDigits reports whether s is a non-empty run of ASCII digits
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
