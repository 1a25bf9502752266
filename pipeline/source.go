package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"gocv.io/x/gocv"
)

// FrameSource supplies frames on demand. Read returns false at end of stream.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// Camera wraps a gocv capture device, file or stream URL
type Camera struct {
	capture *gocv.VideoCapture
	device  string
}

// OpenCamera opens a numeric device index ("0") or a file/stream path
func OpenCamera(device string) (*Camera, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		device = "0"
	}

	var target interface{} = device
	if idx, err := strconv.Atoi(device); err == nil {
		target = idx
	}

	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("open capture %q: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open capture %q: device not available", device)
	}

	return &Camera{capture: capture, device: device}, nil
}

// Read grabs the next frame into dst
func (c *Camera) Read(dst *gocv.Mat) bool {
	if !c.capture.IsOpened() {
		return false
	}
	return c.capture.Read(dst)
}

// FrameSize reports the capture's configured frame dimensions
func (c *Camera) FrameSize() (int, int) {
	return int(c.capture.Get(gocv.VideoCaptureFrameWidth)), int(c.capture.Get(gocv.VideoCaptureFrameHeight))
}

// Device returns the device string the camera was opened with
func (c *Camera) Device() string {
	return c.device
}

// Close releases the capture device
func (c *Camera) Close() error {
	return c.capture.Close()
}
