package overlay

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"roadcam/detection"

	"gocv.io/x/gocv"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Renderer draws the detector-style box annotation onto frames
type Renderer struct {
	boxColor   color.RGBA
	boxColors  map[string]color.RGBA
	thickness  int
	labelScale float64
}

// NewRenderer creates a new overlay renderer
func NewRenderer() *Renderer {
	return &Renderer{
		boxColor: color.RGBA{R: 0x00, G: 0x7f, B: 0xff, A: 255}, // Light blue for untracked classes
		boxColors: map[string]color.RGBA{
			"Stop":        {R: 220, G: 20, B: 60, A: 255},
			"Red Light":   {R: 255, G: 0, B: 0, A: 255},
			"Green Light": {R: 0, G: 200, B: 0, A: 255},
		},
		thickness:  2,
		labelScale: 0.5,
	}
}

// colorFor picks the box colour for a class. Stop and speed limit names match
// the same way the classifier matches them; speed limits share one colour.
func (r *Renderer) colorFor(className string) color.RGBA {
	switch {
	case strings.Contains(className, "Stop"):
		return r.boxColors["Stop"]
	case strings.Contains(className, "Speed Limit"):
		return color.RGBA{R: 255, G: 165, B: 0, A: 255}
	}
	if c, ok := r.boxColors[className]; ok {
		return c
	}
	return r.boxColor
}

// DrawDetections draws every detection as a box with a "name NN%" label
func (r *Renderer) DrawDetections(img *gocv.Mat, detections []detection.Detection) {
	for _, det := range detections {
		c := r.colorFor(det.ClassName)
		rect := det.Box

		gocv.Rectangle(img, rect, c, r.thickness)

		// Add small center dot
		center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
		gocv.Circle(img, center, 3, c, -1)

		labelPos := image.Pt(rect.Min.X, rect.Min.Y-8)
		// Ensure label stays within frame
		if labelPos.Y < 15 {
			labelPos.Y = rect.Max.Y + 20
		}
		gocv.PutText(img, det.Label(), labelPos, gocv.FontHersheySimplex, r.labelScale, c, 1)
	}
}

// Annotate returns a copy of frame with the detections drawn on it. The caller
// owns the returned Mat.
func (r *Renderer) Annotate(frame gocv.Mat, detections []detection.Detection) gocv.Mat {
	annotated := frame.Clone()
	r.DrawDetections(&annotated, detections)
	if len(detections) > 0 {
		debugMsg("OVERLAY", fmt.Sprintf("Annotated %d detections", len(detections)))
	}
	return annotated
}
