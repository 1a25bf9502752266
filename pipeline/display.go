package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"roadcam/signstate"

	"github.com/charmbracelet/lipgloss"
	"gocv.io/x/gocv"
)

// Display shows composited frames and reports when the user wants to stop
type Display interface {
	Show(img gocv.Mat)
	ExitRequested() bool
	Close() error
}

// StateReporter is implemented by displays that want to hear about state changes
type StateReporter interface {
	ReportState(state signstate.State)
}

// WindowDisplay shows frames in a highgui window
type WindowDisplay struct {
	window  *gocv.Window
	exitKey int
}

// NewWindowDisplay opens a window titled title; pressing exitKey stops the loop
func NewWindowDisplay(title string, exitKey rune) *WindowDisplay {
	return &WindowDisplay{
		window:  gocv.NewWindow(title),
		exitKey: int(exitKey),
	}
}

// Show draws img into the window
func (w *WindowDisplay) Show(img gocv.Mat) {
	w.window.IMShow(img)
}

// ExitRequested pumps window events and reports an exit key press or a closed window
func (w *WindowDisplay) ExitRequested() bool {
	if key := w.window.WaitKey(1); key >= 0 && key&0xFF == w.exitKey {
		return true
	}
	return w.window.GetWindowProperty(gocv.WindowPropertyVisible) < 1
}

// Close destroys the window
func (w *WindowDisplay) Close() error {
	return w.window.Close()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	unsetStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Faint(true)
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// ConsoleDisplay is the headless display: it drops frames and prints the panel
// values whenever they change. It never asks the loop to stop.
type ConsoleDisplay struct {
	out io.Writer
}

// NewConsoleDisplay writes state lines to out, or stdout when out is nil
func NewConsoleDisplay(out io.Writer) *ConsoleDisplay {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleDisplay{out: out}
}

// Show discards the frame
func (c *ConsoleDisplay) Show(gocv.Mat) {}

// ExitRequested always reports false; headless runs stop via context or end of stream
func (c *ConsoleDisplay) ExitRequested() bool { return false }

// Close is a no-op
func (c *ConsoleDisplay) Close() error { return nil }

// ReportState prints "SIGN Stop  SPEED -  LIGHT Red"
func (c *ConsoleDisplay) ReportState(state signstate.State) {
	fmt.Fprintln(c.out, FormatState(state, time.Now()))
}

// FormatState renders the panel values as one styled console line
func FormatState(state signstate.State, at time.Time) string {
	parts := make([]string, 0, len(signstate.Categories))
	for _, category := range signstate.Categories {
		value := state.Get(category)
		style := valueStyle
		if !value.IsSet() {
			style = unsetStyle
		}
		parts = append(parts, headerStyle.Render(category.String())+" "+style.Render(string(value)))
	}
	return timeStyle.Render(at.Format("15:04:05.000")) + "  " + strings.Join(parts, "  ")
}
