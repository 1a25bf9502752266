package detection

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signs.names")
	require.NoError(t, os.WriteFile(path, []byte("Green Light\r\nRed Light\nSpeed Limit 60\nStop\n\n"), 0o644))

	registry, err := LoadRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, 4, registry.Len())
	name, ok := registry.Name(2)
	assert.True(t, ok)
	assert.Equal(t, "Speed Limit 60", name)

	name, ok = registry.Name(0)
	assert.True(t, ok)
	assert.Equal(t, "Green Light", name)

	_, ok = registry.Name(4)
	assert.False(t, ok)
	_, ok = registry.Name(-1)
	assert.False(t, ok)
}

func TestLoadRegistry_Errors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.names"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.names")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))
	_, err = LoadRegistry(empty)
	assert.Error(t, err)
}

func TestRegistry_IsReadOnly(t *testing.T) {
	names := []string{"Stop", "Red Light"}
	registry := NewRegistry(names)
	names[0] = "changed"

	out := registry.Names()
	out[1] = "changed"

	name, _ := registry.Name(0)
	assert.Equal(t, "Stop", name)
	name, _ = registry.Name(1)
	assert.Equal(t, "Red Light", name)
}

func TestDetectionLabel(t *testing.T) {
	d := Detection{ClassName: "Stop", Confidence: 0.876}
	assert.Equal(t, "Stop 88%", d.Label())
}

func TestDecodeDarknet(t *testing.T) {
	frame := image.Pt(200, 100)
	data := []float32{
		// cx, cy, w, h, obj, class0, class1
		0.5, 0.5, 0.2, 0.4, 0.9, 0.1, 0.8,
		0.1, 0.1, 0.1, 0.1, 0.9, 0.2, 0.1,
	}

	cands := decodeDarknet(data, 2, 7, frame, 0.3)
	require.Len(t, cands, 1)
	assert.Equal(t, 1, cands[0].classID)
	assert.InDelta(t, 0.8, cands[0].score, 1e-6)
	assert.Equal(t, image.Rect(80, 30, 120, 70), cands[0].box)
}

func TestDecodeYOLOv8(t *testing.T) {
	// 2 anchors, 2 classes, channel-major layout
	anchors := 2
	data := []float32{
		320, 100, // cx
		320, 100, // cy
		64, 10, // w
		64, 10, // h
		0.9, 0.1, // class 0
		0.2, 0.1, // class 1
	}

	cands := decodeYOLOv8(data, 6, anchors, 640, image.Pt(1280, 640), 0.25)
	require.Len(t, cands, 1)
	assert.Equal(t, 0, cands[0].classID)
	assert.Equal(t, image.Rect(576, 288, 704, 352), cands[0].box)
}

func TestDecodeYOLOv8_ShortBuffer(t *testing.T) {
	assert.Empty(t, decodeYOLOv8([]float32{1, 2, 3}, 6, 2, 640, image.Pt(640, 640), 0.25))
}

func TestFinalize(t *testing.T) {
	registry := NewRegistry([]string{"Speed Limit 30", "Speed Limit 60"})
	cands := []candidate{
		{classID: 0, score: 0.6, box: image.Rect(0, 0, 100, 100)},
		{classID: 0, score: 0.9, box: image.Rect(5, 5, 105, 105)},
		{classID: 1, score: 0.7, box: image.Rect(5, 5, 105, 105)},
		{classID: 7, score: 0.99, box: image.Rect(300, 300, 310, 310)},
	}

	dets := finalize(cands, registry, 0.45)
	require.Len(t, dets, 2)

	// Descending confidence, overlapping same-class box suppressed, unknown id dropped
	assert.Equal(t, "Speed Limit 30", dets[0].ClassName)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.Equal(t, "Speed Limit 60", dets[1].ClassName)
}

func TestFinalize_Detections(t *testing.T) {
	registry := NewRegistry([]string{"Stop", "Red Light"})
	cands := []candidate{
		{classID: 1, score: 0.55, box: image.Rect(40, 10, 60, 50)},
		{classID: 0, score: 0.8, box: image.Rect(0, 0, 30, 30)},
		{classID: 0, score: 0.75, box: image.Rect(100, 0, 130, 30)},
	}

	want := []Detection{
		{ClassID: 0, ClassName: "Stop", Confidence: 0.8, Box: image.Rect(0, 0, 30, 30)},
		{ClassID: 0, ClassName: "Stop", Confidence: 0.75, Box: image.Rect(100, 0, 130, 30)},
		{ClassID: 1, ClassName: "Red Light", Confidence: 0.55, Box: image.Rect(40, 10, 60, 50)},
	}
	if diff := cmp.Diff(want, finalize(cands, registry, 0.45), cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("finalize mismatch (-want +got):\n%s", diff)
	}
}

func TestIoU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.InDelta(t, 1.0, iou(a, a), 1e-9)
	assert.InDelta(t, 0.0, iou(a, image.Rect(20, 20, 30, 30)), 1e-9)
	assert.InDelta(t, 25.0/175.0, iou(a, image.Rect(5, 5, 15, 15)), 1e-9)
}

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 2100, anchorCount(320))
}

func TestModelConfigDefaults(t *testing.T) {
	cfg := ModelConfig{Weights: "best.ONNX"}.withDefaults()
	assert.Equal(t, DefaultInputSize, cfg.InputSize)
	assert.Equal(t, DefaultScoreThreshold, cfg.ScoreThreshold)
	assert.Equal(t, DefaultNMSThreshold, cfg.NMSThreshold)
	assert.True(t, cfg.isONNX())

	assert.Error(t, ModelConfig{}.validate())
	assert.Error(t, ModelConfig{Weights: "x.onnx"}.validate())
	assert.NoError(t, ModelConfig{Weights: "x.onnx", Registry: NewRegistry([]string{"Stop"})}.validate())
}

func TestProviderManager_UnknownBackend(t *testing.T) {
	pm := NewProviderManager("tpu")
	err := pm.Initialize(ModelConfig{Weights: "x.onnx", Registry: NewRegistry([]string{"Stop"})})
	assert.Error(t, err)

	mat := gocv.NewMat()
	defer mat.Close()
	_, err = pm.Detect(mat)
	assert.Error(t, err)
	assert.NoError(t, pm.Close())
}

func TestNetProviders_CloseWithoutLoad(t *testing.T) {
	for _, p := range []InferenceProvider{&CPUProvider{}, &GPUProvider{}} {
		frame := gocv.NewMat()

		_, err := p.Detect(frame)
		assert.Error(t, err, p.GetProviderInfo().Type)
		assert.NoError(t, p.Close(), p.GetProviderInfo().Type)
		assert.NoError(t, p.Close(), "second close is a no-op")

		frame.Close()
	}
}
