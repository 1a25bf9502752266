// Package pipeline runs the single-threaded capture, detect, aggregate,
// composite and display loop.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"roadcam/detection"
	"roadcam/overlay"
	"roadcam/signstate"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// debugMsgFunc is set by the main package to route messages into the shared logger
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Detector turns a frame into detections, in the detector's own order
type Detector interface {
	Detect(frame gocv.Mat) ([]detection.Detection, error)
}

// Status is the loop lifecycle state
type Status int

const (
	Running Status = iota
	Stopped
)

func (s Status) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Stop reasons reported in Result
const (
	StopEndOfStream   = "end of stream"
	StopExitRequested = "exit requested"
	StopCanceled      = "canceled"
)

// Config holds the loop's tunables and optional collaborators
type Config struct {
	Interval      time.Duration // cadence between aggregation passes
	StatsInterval time.Duration // spacing of performance reports
	Clock         Clock
	Renderer      *overlay.Renderer
	Snapshots     *Snapshotter
	RunID         uuid.UUID
}

// Result summarises a finished run
type Result struct {
	RunID    uuid.UUID
	Frames   int64
	Cycles   int64
	State    signstate.State
	Reason   string
	Duration time.Duration
}

// Loop drives one capture source through detection, aggregation and display.
// The tracker state is only touched from Run's goroutine.
type Loop struct {
	source   FrameSource
	detector Detector
	display  Display
	renderer *overlay.Renderer
	clock    Clock
	tracker  *signstate.Tracker
	stats    *Stats
	snaps    *Snapshotter
	runID    uuid.UUID

	status Status
	reason string
	start  time.Time
}

// New creates a loop. The loop takes ownership of source and display and
// closes both when Run returns.
func New(cfg Config, source FrameSource, detector Detector, display Display) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Renderer == nil {
		cfg.Renderer = overlay.NewRenderer()
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	now := cfg.Clock.Now()

	return &Loop{
		source:   source,
		detector: detector,
		display:  display,
		renderer: cfg.Renderer,
		clock:    cfg.Clock,
		tracker:  signstate.NewTracker(cfg.Interval, now),
		stats:    NewStats(cfg.StatsInterval, now),
		snaps:    cfg.Snapshots,
		runID:    cfg.RunID,
		status:   Running,
		start:    now,
	}
}

// Status returns the current lifecycle state
func (l *Loop) Status() Status {
	return l.status
}

// State returns the current panel state
func (l *Loop) State() signstate.State {
	return l.tracker.State()
}

// Result returns the run summary so far
func (l *Loop) Result() Result {
	return Result{
		RunID:    l.runID,
		Frames:   l.stats.Frames(),
		Cycles:   l.stats.Cycles(),
		State:    l.tracker.State(),
		Reason:   l.reason,
		Duration: l.clock.Now().Sub(l.start),
	}
}

// Run processes frames until the source ends, the display asks to exit or ctx
// is canceled. Cancellation is only checked between frames. End of stream is a
// normal stop, not an error.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	defer l.release()

	debugMsg("LOOP", fmt.Sprintf("Run %s started (interval %v)", l.runID, l.tracker.Scheduler().Interval()))

	frame := gocv.NewMat()
	defer frame.Close()

	for l.status == Running {
		if ctx.Err() != nil {
			l.stop(StopCanceled)
			break
		}
		if err := l.step(&frame); err != nil {
			l.stop(err.Error())
			return l.Result(), err
		}
	}

	result := l.Result()
	debugMsg("LOOP", fmt.Sprintf("Run %s stopped: %s after %d frames, %d cycles, state %s",
		l.runID, result.Reason, result.Frames, result.Cycles, result.State))
	return result, nil
}

// step handles one frame: read, detect, annotate, maybe aggregate, composite, show
func (l *Loop) step(frame *gocv.Mat) error {
	if !l.source.Read(frame) || frame.Empty() {
		l.stop(StopEndOfStream)
		return nil
	}

	detectStart := time.Now()
	detections, err := l.detector.Detect(*frame)
	if err != nil {
		debugMsg("DETECT_ERROR", fmt.Sprintf("Detection failed, frame treated as empty: %v", err))
		detections = nil
	}
	l.stats.RecordFrame(time.Since(detectStart))

	annotated := l.renderer.Annotate(*frame, detections)
	defer annotated.Close()

	now := l.clock.Now()
	previous := l.tracker.State()
	state, ran := l.tracker.Observe(now, Observations(detections))
	if ran {
		l.stats.RecordCycle()
	}

	combined, err := overlay.Compose(annotated, state.Values())
	if err != nil {
		return fmt.Errorf("compose frame: %w", err)
	}
	defer combined.Close()

	if ran && state.Changed(previous) {
		l.onStateChange(combined, state, now)
	}

	l.display.Show(combined)

	if line, ok := l.stats.Report(now); ok {
		debugMsg("PERF", line)
	}

	if l.display.ExitRequested() {
		l.stop(StopExitRequested)
	}
	return nil
}

func (l *Loop) onStateChange(img gocv.Mat, state signstate.State, now time.Time) {
	debugMsg("STATE", state.String())

	if reporter, ok := l.display.(StateReporter); ok {
		reporter.ReportState(state)
	}

	if l.snaps != nil {
		path, err := l.snaps.Save(img, state, now)
		if err != nil {
			debugMsg("SNAPSHOT_ERROR", err.Error())
			return
		}
		debugMsg("SNAPSHOT", fmt.Sprintf("Saved %s", path))
	}
}

func (l *Loop) stop(reason string) {
	if l.status == Stopped {
		return
	}
	l.status = Stopped
	l.reason = reason
}

// release closes the source and display on every exit path
func (l *Loop) release() {
	if err := l.source.Close(); err != nil {
		debugMsg("LOOP", fmt.Sprintf("Closing source: %v", err))
	}
	if err := l.display.Close(); err != nil {
		debugMsg("LOOP", fmt.Sprintf("Closing display: %v", err))
	}
}

// Observations adapts detections to the classifier input, keeping their order
func Observations(detections []detection.Detection) []signstate.Observation {
	out := make([]signstate.Observation, len(detections))
	for i, d := range detections {
		out[i] = signstate.Observation{ClassName: d.ClassName, Confidence: d.Confidence}
	}
	return out
}
