package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"roadcam/signstate"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Snapshotter saves composited frames as JPEG when the panel state changes.
// Files are grouped into per-hour subdirectories such as 2025-01-01_03PM.
type Snapshotter struct {
	dir   string
	runID uuid.UUID
}

// NewSnapshotter creates the base directory and returns a snapshotter for it
func NewSnapshotter(dir string, runID uuid.UUID) (*Snapshotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory '%s': %w", dir, err)
	}
	return &Snapshotter{dir: dir, runID: runID}, nil
}

// hourDir returns the 12-hour bucket name for t
func hourDir(t time.Time) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	ampm := "AM"
	if t.Hour() >= 12 {
		ampm = "PM"
	}
	return fmt.Sprintf("%s_%02d%s", t.Format("2006-01-02"), hour12, ampm)
}

// fileName builds "<timestamp>_<run>_<sign>_<speed>_<light>.jpg"
func (s *Snapshotter) fileName(t time.Time, state signstate.State) string {
	values := state.Values()
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if !v.IsSet() {
			parts = append(parts, "none")
			continue
		}
		parts = append(parts, strings.ReplaceAll(string(v), " ", ""))
	}
	return fmt.Sprintf("%s_%s_%s.jpg", t.Format("20060102_150405.000"), s.runID.String()[:8], strings.Join(parts, "_"))
}

// Save writes img and returns its path
func (s *Snapshotter) Save(img gocv.Mat, state signstate.State, at time.Time) (string, error) {
	subdir := filepath.Join(s.dir, hourDir(at))
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory %s: %w", subdir, err)
	}

	path := filepath.Join(subdir, s.fileName(at, state))
	if !gocv.IMWrite(path, img) {
		return "", fmt.Errorf("failed to save snapshot %s", path)
	}
	return path, nil
}
