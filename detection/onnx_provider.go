package detection

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ONNXProvider runs an ultralytics ONNX export through onnxruntime
type ONNXProvider struct {
	cfg      ModelConfig
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	channels int
	anchors  int
	mu       sync.Mutex
}

// anchorCount returns the number of YOLOv8 predictions for a square input (strides 8, 16, 32)
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := size / stride
		n += side * side
	}
	return n
}

// Initialize loads the onnxruntime library and creates the session
func (op *ONNXProvider) Initialize(cfg ModelConfig) error {
	op.cfg = cfg.withDefaults()
	if !op.cfg.isONNX() {
		return errors.Errorf("onnx backend needs an .onnx model, got %s", op.cfg.Weights)
	}

	if op.cfg.ONNXLibrary != "" {
		ort.SetSharedLibraryPath(op.cfg.ONNXLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}

	size := op.cfg.InputSize
	op.channels = 4 + op.cfg.Registry.Len()
	op.anchors = anchorCount(size)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		ort.DestroyEnvironment()
		return errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(op.channels), int64(op.anchors)))
	if err != nil {
		input.Destroy()
		ort.DestroyEnvironment()
		return errors.Wrap(err, "create output tensor")
	}

	session, err := ort.NewAdvancedSession(
		op.cfg.Weights,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ort.DestroyEnvironment()
		return errors.Wrap(err, "create onnx session")
	}

	op.session, op.input, op.output = session, input, output
	return nil
}

// Detect performs object detection on a frame
func (op *ONNXProvider) Detect(frame gocv.Mat) ([]Detection, error) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.session == nil {
		return nil, errors.New("onnx provider not initialized")
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	// gocv frames are BGR; ToImage hands back RGB
	img, err := frame.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert frame to image")
	}

	size := op.cfg.InputSize
	fillCHW(imaging.Resize(img, size, size, imaging.Linear), op.input.GetData())

	if err := op.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model inference")
	}

	frameSize := image.Pt(frame.Cols(), frame.Rows())
	cands := decodeYOLOv8(op.output.GetData(), op.channels, op.anchors, size, frameSize, float32(op.cfg.ScoreThreshold))
	return finalize(cands, op.cfg.Registry, op.cfg.NMSThreshold), nil
}

// fillCHW writes an RGB image into a planar float buffer scaled to [0,1]
func fillCHW(img *image.NRGBA, dst []float32) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			px := row[x*4:]
			dst[i] = float32(px[0]) / 255.0
			dst[plane+i] = float32(px[1]) / 255.0
			dst[2*plane+i] = float32(px[2]) / 255.0
		}
	}
}

// Close destroys the session, its tensors and the runtime environment
func (op *ONNXProvider) Close() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.session == nil {
		return nil
	}
	op.session.Destroy()
	op.input.Destroy()
	op.output.Destroy()
	op.session = nil
	return ort.DestroyEnvironment()
}

// GetProviderInfo returns information about the ONNX provider
func (op *ONNXProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:    "ONNX",
		Backend: "onnxruntime",
		Device:  "CPU",
	}
}
