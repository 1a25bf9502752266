package signstate

// CycleResult holds what a single aggregation pass saw, one value per category
type CycleResult struct {
	slots
}

// NewCycleResult returns a result with every category Unset
func NewCycleResult() CycleResult {
	return CycleResult{slots: unsetSlots()}
}

// Empty reports whether no category was observed in the cycle
func (r CycleResult) Empty() bool {
	for _, c := range Categories {
		if r.Get(c).IsSet() {
			return false
		}
	}
	return true
}

// Aggregate reduces one frame's detections into a CycleResult.
// Observations are visited in the order given and the last qualifying value
// for a category wins, whatever its confidence.
func Aggregate(observations []Observation) CycleResult {
	result := NewCycleResult()
	for _, obs := range observations {
		category, value, ok := Classify(obs.ClassName, obs.Confidence)
		if !ok {
			continue
		}
		*result.ref(category) = value
	}
	return result
}
