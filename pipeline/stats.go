package pipeline

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// perfReportInterval is the default spacing between performance reports
const perfReportInterval = 15 * time.Second

// Stats tracks frame throughput and detector cost for periodic reporting
type Stats struct {
	interval time.Duration
	start    time.Time

	frames      int64
	cycles      int64
	detectTotal time.Duration

	lastReport     time.Time
	framesAtReport int64
	window         []float64 // detect times in ms since the last report
}

// NewStats creates a stats tracker that reports every interval
func NewStats(interval time.Duration, now time.Time) *Stats {
	if interval <= 0 {
		interval = perfReportInterval
	}
	return &Stats{interval: interval, start: now, lastReport: now}
}

// RecordFrame counts one displayed frame and the time spent in detection
func (s *Stats) RecordFrame(detect time.Duration) {
	s.frames++
	s.detectTotal += detect
	s.window = append(s.window, float64(detect)/float64(time.Millisecond))
}

// RecordCycle counts one aggregation pass
func (s *Stats) RecordCycle() {
	s.cycles++
}

// Frames returns the number of frames processed
func (s *Stats) Frames() int64 { return s.frames }

// Cycles returns the number of aggregation passes
func (s *Stats) Cycles() int64 { return s.cycles }

// AvgDetect returns the mean detection time per frame
func (s *Stats) AvgDetect() time.Duration {
	if s.frames == 0 {
		return 0
	}
	return s.detectTotal / time.Duration(s.frames)
}

// DetectQuantile returns the p-quantile of detection time over the current
// report window
func (s *Stats) DetectQuantile(p float64) time.Duration {
	if len(s.window) == 0 {
		return 0
	}
	sorted := append([]float64(nil), s.window...)
	sort.Float64s(sorted)
	ms := stat.Quantile(p, stat.Empirical, sorted, nil)
	return time.Duration(ms * float64(time.Millisecond))
}

// Report returns a summary line and true when a report is due at now
func (s *Stats) Report(now time.Time) (string, bool) {
	elapsed := now.Sub(s.lastReport)
	if elapsed < s.interval {
		return "", false
	}

	fps := float64(s.frames-s.framesAtReport) / elapsed.Seconds()
	line := fmt.Sprintf("FPS: %.1f | Frames: %d | Cycles: %d | Avg detect: %v | p95 detect: %v",
		fps, s.frames, s.cycles, s.AvgDetect().Round(time.Millisecond),
		s.DetectQuantile(0.95).Round(time.Millisecond))

	s.lastReport = now
	s.framesAtReport = s.frames
	s.window = s.window[:0]
	return line, true
}
