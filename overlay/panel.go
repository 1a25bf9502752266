package overlay

import (
	"fmt"
	"image"
	"image/color"

	"roadcam/signstate"

	"gocv.io/x/gocv"
)

// Panel geometry, in pixels
const (
	PanelHeight      = 100
	BorderThickness  = 5
	DividerThickness = 3
	HeaderOffsetX    = 80
	HeaderBaseline   = 25
	HeaderScale      = 0.5
	ValueOffsetX     = 20
	ValueBaseline    = 70
	ValueScale       = 1.0
	TextThickness    = 1
)

// Headers are the static column titles in panel order
var Headers = [3]string{"SIGN", "SPEED", "LIGHT"}

var (
	panelWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	panelBlack  = color.RGBA{R: 0, G: 0, B: 0, A: 0}
	absentColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
)

// Cell is the text placement of one panel column
type Cell struct {
	Header       string
	HeaderOrigin image.Point
	Value        signstate.Value
	ValueOrigin  image.Point
	ValueColor   color.RGBA
}

// PanelLayout is the computed geometry of the info panel for a frame width
type PanelLayout struct {
	Width       int
	Height      int
	ColumnWidth int
	Border      image.Rectangle
	Dividers    [2]int
	Cells       [3]Cell
}

// ValueColor is red for an unset value and black for a real reading
func ValueColor(v signstate.Value) color.RGBA {
	if !v.IsSet() {
		return absentColor
	}
	return panelBlack
}

// Layout computes the panel geometry for the given frame width and values.
// Columns are width/3 wide; any remainder is left unused at the right edge.
func Layout(width int, values [3]signstate.Value) PanelLayout {
	colWidth := width / 3
	layout := PanelLayout{
		Width:       width,
		Height:      PanelHeight,
		ColumnWidth: colWidth,
		Border:      image.Rect(0, 0, width-1, PanelHeight-1),
		Dividers:    [2]int{colWidth, 2 * colWidth},
	}

	for i := range layout.Cells {
		x := i * colWidth
		value := values[i]
		if value == "" {
			value = signstate.Unset
		}
		layout.Cells[i] = Cell{
			Header:       Headers[i],
			HeaderOrigin: image.Pt(x+HeaderOffsetX, HeaderBaseline),
			Value:        value,
			ValueOrigin:  image.Pt(x+ValueOffsetX, ValueBaseline),
			ValueColor:   ValueColor(value),
		}
	}
	return layout
}

// DrawPanel renders a white info panel of PanelHeight rows for the layout.
// The caller owns the returned Mat.
func DrawPanel(layout PanelLayout) gocv.Mat {
	panel := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), layout.Height, layout.Width, gocv.MatTypeCV8UC3)

	gocv.Rectangle(&panel, layout.Border, panelBlack, BorderThickness)

	for _, x := range layout.Dividers {
		gocv.Line(&panel, image.Pt(x, 0), image.Pt(x, layout.Height), panelBlack, DividerThickness)
	}

	for _, cell := range layout.Cells {
		gocv.PutText(&panel, cell.Header, cell.HeaderOrigin, gocv.FontHersheySimplex, HeaderScale, panelBlack, TextThickness)
		gocv.PutText(&panel, string(cell.Value), cell.ValueOrigin, gocv.FontHersheySimplex, ValueScale, cell.ValueColor, TextThickness)
	}
	return panel
}

// Compose stacks the info panel for values under frame. The result has the
// frame's width and PanelHeight extra rows; frame is not modified. The caller
// owns the returned Mat.
func Compose(frame gocv.Mat, values [3]signstate.Value) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), fmt.Errorf("compose: empty frame")
	}

	top := frame
	switch frame.Type() {
	case gocv.MatTypeCV8UC3:
	case gocv.MatTypeCV8UC1:
		top = gocv.NewMat()
		defer top.Close()
		gocv.CvtColor(frame, &top, gocv.ColorGrayToBGR)
	default:
		// Vconcat asserts matching types and the panel is always 8-bit BGR
		return gocv.NewMat(), fmt.Errorf("compose: unsupported frame type %v", frame.Type())
	}

	panel := DrawPanel(Layout(top.Cols(), values))
	defer panel.Close()

	combined := gocv.NewMat()
	gocv.Vconcat(top, panel, &combined)
	return combined, nil
}
