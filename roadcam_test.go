package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"roadcam/detection"
	"roadcam/pipeline"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("ROADCAM_TEST_DIR", "/data/models")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty", "", ""},
		{"home", "~", home},
		{"home relative", "~/models/best.onnx", filepath.Join(home, "models", "best.onnx")},
		{"env var", "$ROADCAM_TEST_DIR/best.onnx", "/data/models/best.onnx"},
		{"plain", "signs.names", "signs.names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandPath(tt.path))
		})
	}
}

func TestPrintClasses(t *testing.T) {
	registry := detection.NewRegistry([]string{
		"Stop",
		"Speed Limit 30",
		"Speed Limit",
		"Red Light",
		"Crosswalk",
	})

	var buf bytes.Buffer
	require.NoError(t, printClasses(&buf, registry))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"ID", "NAME", "PANEL", "VALUE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"0", "Stop", "SIGN", "Stop"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1", "Speed", "Limit", "30", "SPEED", "30"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"2", "Speed", "Limit", "-", "-"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"3", "Red", "Light", "LIGHT", "Red"}, strings.Fields(lines[4]))
	assert.Equal(t, []string{"4", "Crosswalk", "-", "-"}, strings.Fields(lines[5]))
}

func TestExitKey(t *testing.T) {
	t.Cleanup(func() { viper.Set("display.exit_key", nil) })

	viper.Set("display.exit_key", "x")
	assert.Equal(t, 'x', exitKey())

	viper.Set("display.exit_key", "")
	assert.Equal(t, 'q', exitKey())
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("logging.level", nil)
		viper.Set("logging.format", nil)
	})

	viper.Set("logging.level", "debug")
	viper.Set("logging.format", "json")
	assert.NoError(t, setupLogging())

	viper.Set("logging.level", "verbose")
	assert.Error(t, setupLogging())

	viper.Set("logging.level", "info")
	viper.Set("logging.format", "xml")
	assert.Error(t, setupLogging())
}

type emptySource struct{ closed bool }

func (s *emptySource) Read(*gocv.Mat) bool { return false }
func (s *emptySource) Close() error        { s.closed = true; return nil }

type countingDetector struct{ calls int }

func (d *countingDetector) Detect(gocv.Mat) ([]detection.Detection, error) {
	d.calls++
	return nil, nil
}

type quietDisplay struct{ closed bool }

func (d *quietDisplay) Show(gocv.Mat)       {}
func (d *quietDisplay) ExitRequested() bool { return false }
func (d *quietDisplay) Close() error        { d.closed = true; return nil }

func TestStartLoop_OpenFailureEndsRunNormally(t *testing.T) {
	detector := &countingDetector{}
	displays := 0
	open := func(string) (pipeline.FrameSource, error) {
		return nil, errors.New("device not available")
	}
	newDisplay := func() pipeline.Display {
		displays++
		return &quietDisplay{}
	}

	result, err := startLoop(context.Background(), "/nonexistent/video.mp4", open, detector, newDisplay, pipeline.Config{})
	require.NoError(t, err)
	assert.Nil(t, result, "no loop runs without a source")
	assert.Zero(t, detector.calls)
	assert.Zero(t, displays)
}

func TestStartLoop_RunsUntilEndOfStream(t *testing.T) {
	source := &emptySource{}
	display := &quietDisplay{}
	var opened string
	open := func(device string) (pipeline.FrameSource, error) {
		opened = device
		return source, nil
	}

	result, err := startLoop(context.Background(), "2", open, &countingDetector{},
		func() pipeline.Display { return display }, pipeline.Config{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "2", opened)
	assert.Equal(t, pipeline.StopEndOfStream, result.Reason)
	assert.Zero(t, result.Frames)
	assert.True(t, source.closed)
	assert.True(t, display.closed)
}
