package detection

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Backend names accepted by ProviderManager
const (
	BackendAuto = "auto"
	BackendCPU  = "cpu"
	BackendGPU  = "gpu"
	BackendONNX = "onnx"
)

// Default post-processing parameters
const (
	DefaultInputSize      = 640
	DefaultScoreThreshold = 0.25
	DefaultNMSThreshold   = 0.45
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

// ModelConfig describes the model files and decoding parameters
type ModelConfig struct {
	Weights        string // .weights (darknet) or .onnx
	Config         string // darknet .cfg, empty for ONNX
	Registry       *Registry
	InputSize      int
	ScoreThreshold float64
	NMSThreshold   float64
	ONNXLibrary    string // onnxruntime shared library, ONNX backend only
}

func (c ModelConfig) withDefaults() ModelConfig {
	if c.InputSize <= 0 {
		c.InputSize = DefaultInputSize
	}
	if c.ScoreThreshold <= 0 {
		c.ScoreThreshold = DefaultScoreThreshold
	}
	if c.NMSThreshold <= 0 {
		c.NMSThreshold = DefaultNMSThreshold
	}
	return c
}

func (c ModelConfig) validate() error {
	if c.Weights == "" {
		return errors.New("model weights path is required")
	}
	if c.Registry.Len() == 0 {
		return errors.New("class registry is empty")
	}
	return nil
}

// isONNX reports whether the weights are an ONNX export
func (c ModelConfig) isONNX() bool {
	return strings.EqualFold(filepath.Ext(c.Weights), ".onnx")
}

// InferenceProvider defines the interface for YOLO inference
type InferenceProvider interface {
	Initialize(cfg ModelConfig) error
	Detect(frame gocv.Mat) ([]Detection, error)
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo contains information about the inference provider
type ProviderInfo struct {
	Type     string        // "GPU", "CPU" or "ONNX"
	Backend  string        // "CUDA", "OpenCV CPU", "onnxruntime"
	Device   string        // Device identifier
	InitTime time.Duration // Time taken to initialize
}

// ProviderManager handles provider selection and GPU to CPU fallback
type ProviderManager struct {
	backend         string
	currentProvider InferenceProvider
	providerInfo    ProviderInfo
}

// NewProviderManager creates a provider manager for the given backend name
func NewProviderManager(backend string) *ProviderManager {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendAuto
	}
	return &ProviderManager{backend: backend}
}

// Initialize selects and initializes a provider
func (pm *ProviderManager) Initialize(cfg ModelConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	switch pm.backend {
	case BackendONNX:
		return pm.use(&ONNXProvider{}, cfg)
	case BackendCPU:
		return pm.use(&CPUProvider{}, cfg)
	case BackendGPU:
		return pm.use(&GPUProvider{}, cfg)
	case BackendAuto:
	default:
		return errors.Errorf("unknown inference backend %q", pm.backend)
	}

	debugMsg("PROVIDER", "Auto-detecting best inference provider...")

	// Try GPU first
	if hasGPUCapability() {
		gpuProvider := &GPUProvider{}
		err := pm.use(gpuProvider, cfg)
		if err == nil {
			// Test GPU inference to make sure it really works
			if testProvider(gpuProvider, cfg.InputSize) {
				return nil
			}
			debugMsg("PROVIDER", "GPU test inference failed, falling back to CPU")
			gpuProvider.Close()
			pm.currentProvider = nil
		} else {
			debugMsg("PROVIDER", fmt.Sprintf("GPU initialization failed: %v, falling back to CPU", err))
			gpuProvider.Close()
		}
	} else {
		debugMsg("PROVIDER", "No GPU capability detected")
	}

	if err := pm.use(&CPUProvider{}, cfg); err != nil {
		return errors.Wrap(err, "both GPU and CPU providers failed")
	}
	return nil
}

func (pm *ProviderManager) use(p InferenceProvider, cfg ModelConfig) error {
	startTime := time.Now()
	if err := p.Initialize(cfg); err != nil {
		return err
	}
	pm.currentProvider = p
	pm.providerInfo = p.GetProviderInfo()
	pm.providerInfo.InitTime = time.Since(startTime)
	debugMsg("PROVIDER", fmt.Sprintf("%s provider initialized (%v)", pm.providerInfo.Type, pm.providerInfo.InitTime))
	return nil
}

// Detect runs the active provider
func (pm *ProviderManager) Detect(frame gocv.Mat) ([]Detection, error) {
	if pm.currentProvider == nil {
		return nil, errors.New("no inference provider initialized")
	}
	return pm.currentProvider.Detect(frame)
}

// GetProvider returns the current active provider
func (pm *ProviderManager) GetProvider() InferenceProvider {
	return pm.currentProvider
}

// GetProviderInfo returns information about the current provider
func (pm *ProviderManager) GetProviderInfo() ProviderInfo {
	return pm.providerInfo
}

// Close closes the current provider
func (pm *ProviderManager) Close() error {
	if pm.currentProvider != nil {
		return pm.currentProvider.Close()
	}
	return nil
}

// hasGPUCapability checks if GPU inference is possible
func hasGPUCapability() bool {
	if !hasNVIDIAGPU() {
		debugMsg("GPU_DETECT", "No NVIDIA GPU detected")
		return false
	}
	if !hasNVIDIADriver() {
		debugMsg("GPU_DETECT", "NVIDIA drivers not loaded")
		return false
	}
	// CUDA itself is exercised by the test inference after initialization
	return true
}

// hasNVIDIAGPU checks if NVIDIA GPU is present
func hasNVIDIAGPU() bool {
	output, err := exec.Command("lspci").Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(output)), "nvidia")
}

// hasNVIDIADriver checks if NVIDIA drivers are loaded
func hasNVIDIADriver() bool {
	if err := exec.Command("nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Run(); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia*")
	return len(matches) > 0
}

// testProvider performs a quick test inference to verify the provider works
func testProvider(provider InferenceProvider, size int) bool {
	testFrame := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8UC3)
	defer testFrame.Close()

	_, err := provider.Detect(testFrame)
	return err == nil
}
