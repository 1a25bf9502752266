package signstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		className  string
		confidence float64
		category   Category
		value      Value
		ok         bool
	}{
		{name: "stop sign", className: "Stop", confidence: 0.8, category: Sign, value: "Stop", ok: true},
		{name: "stop substring", className: "Stop Sign", confidence: 0.6, category: Sign, value: "Stop", ok: true},
		{name: "speed limit", className: "Speed Limit 60", confidence: 0.9, category: SpeedLimit, value: "60", ok: true},
		{name: "speed limit three digits", className: "Speed Limit 120", confidence: 0.7, category: SpeedLimit, value: "120", ok: true},
		{name: "speed limit zone", className: "Speed Limit Zone", confidence: 0.9},
		{name: "speed limit without value", className: "Speed Limit", confidence: 0.9},
		{name: "speed limit signed value", className: "Speed Limit -60", confidence: 0.9},
		{name: "speed limit decimal value", className: "Speed Limit 6.5", confidence: 0.9},
		{name: "red light", className: "Red Light", confidence: 0.95, category: TrafficLight, value: "Red", ok: true},
		{name: "green light", className: "Green Light", confidence: 0.51, category: TrafficLight, value: "Green", ok: true},
		{name: "light must match exactly", className: "Red Light Camera", confidence: 0.9},
		{name: "yellow light untracked", className: "Yellow Light", confidence: 0.9},
		{name: "untracked class", className: "Crosswalk", confidence: 0.99},
		{name: "floor is exclusive", className: "Stop", confidence: 0.5},
		{name: "just above floor", className: "Stop", confidence: 0.50001, category: Sign, value: "Stop", ok: true},
		{name: "below floor", className: "Red Light", confidence: 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, value, ok := Classify(tt.className, tt.confidence)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, Unset, value)
				return
			}
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestClassify_StopTakesPrecedence(t *testing.T) {
	// A label matching several families resolves by rule order
	category, value, ok := Classify("Stop Speed Limit 30", 0.9)
	assert.True(t, ok)
	assert.Equal(t, Sign, category)
	assert.Equal(t, Value("Stop"), value)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "SIGN", Sign.String())
	assert.Equal(t, "SPEED", SpeedLimit.String())
	assert.Equal(t, "LIGHT", TrafficLight.String())
	assert.Equal(t, "UNKNOWN", Category(7).String())
}
