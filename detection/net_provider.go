package detection

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// netProvider is the OpenCV DNN inference shared by the CPU and GPU providers
type netProvider struct {
	net         gocv.Net
	outputNames []string
	cfg         ModelConfig
	loaded      bool
	mu          sync.Mutex
}

func (np *netProvider) load(cfg ModelConfig, backend gocv.NetBackendType, target gocv.NetTargetType) error {
	np.cfg = cfg.withDefaults()

	net := gocv.ReadNet(np.cfg.Weights, np.cfg.Config)
	if net.Empty() {
		net.Close()
		return errors.Errorf("failed to load YOLO network from %s and %s", np.cfg.Weights, np.cfg.Config)
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return errors.Wrap(err, "set preferable backend")
	}
	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return errors.Wrap(err, "set preferable target")
	}

	np.net = net
	np.loaded = true
	np.outputNames = outputLayerNames(&np.net)
	return nil
}

// outputLayerNames returns the names of the unconnected output layers
func outputLayerNames(net *gocv.Net) []string {
	var names []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		if name := layer.GetName(); name != "_input" {
			names = append(names, name)
		}
		layer.Close()
	}
	return names
}

func (np *netProvider) detect(frame gocv.Mat) ([]Detection, error) {
	np.mu.Lock()
	defer np.mu.Unlock()

	if !np.loaded {
		return nil, errors.New("network not loaded")
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	size := np.cfg.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	np.net.SetInput(blob, "")

	frameSize := image.Pt(frame.Cols(), frame.Rows())
	threshold := float32(np.cfg.ScoreThreshold)

	var cands []candidate
	if np.cfg.isONNX() {
		output := np.net.Forward("")
		defer output.Close()

		// ultralytics head: [1, 4+nc, anchors]
		dims := output.Size()
		if len(dims) != 3 {
			return nil, errors.Errorf("unexpected ONNX output shape %v", dims)
		}
		data, err := output.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrap(err, "read ONNX output")
		}
		cands = decodeYOLOv8(data, dims[1], dims[2], size, frameSize, threshold)
	} else {
		outputs := np.net.ForwardLayers(np.outputNames)
		defer func() {
			for i := range outputs {
				outputs[i].Close()
			}
		}()
		for _, output := range outputs {
			data, err := output.DataPtrFloat32()
			if err != nil {
				return nil, errors.Wrap(err, "read darknet output")
			}
			cands = append(cands, decodeDarknet(data, output.Rows(), output.Cols(), frameSize, threshold)...)
		}
	}

	return finalize(cands, np.cfg.Registry, np.cfg.NMSThreshold), nil
}

// close releases the network; it is a no-op when load never succeeded
func (np *netProvider) close() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if !np.loaded {
		return nil
	}
	np.loaded = false
	return np.net.Close()
}
