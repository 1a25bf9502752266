package overlay

import (
	"image"
	"testing"

	"roadcam/detection"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestRenderer_AnnotateLeavesSourceUntouched(t *testing.T) {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 200, 300, gocv.MatTypeCV8UC3)
	defer frame.Close()

	r := NewRenderer()
	dets := []detection.Detection{
		{ClassID: 3, ClassName: "Stop", Confidence: 0.9, Box: image.Rect(50, 50, 120, 120)},
		{ClassID: 1, ClassName: "Speed Limit 60", Confidence: 0.7, Box: image.Rect(150, 5, 250, 90)},
	}

	annotated := r.Annotate(frame, dets)
	defer annotated.Close()

	assert.Equal(t, frame.Rows(), annotated.Rows())
	assert.Equal(t, frame.Cols(), annotated.Cols())

	// Box edge is painted on the copy only
	assert.NotEqual(t, uint8(255), annotated.GetVecbAt(50, 80)[1])
	assert.Equal(t, uint8(255), frame.GetVecbAt(50, 80)[1])
}

func TestRenderer_ColorFor(t *testing.T) {
	r := NewRenderer()
	assert.Equal(t, r.boxColors["Stop"], r.colorFor("Stop"))
	assert.Equal(t, r.boxColors["Stop"], r.colorFor("Stop Sign"))
	assert.Equal(t, r.boxColors["Red Light"], r.colorFor("Red Light"))
	assert.Equal(t, r.colorFor("Speed Limit 30"), r.colorFor("Speed Limit 60"))
	assert.Equal(t, r.boxColor, r.colorFor("Person"))
}
