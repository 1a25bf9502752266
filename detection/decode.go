package detection

import (
	"image"
	"sort"
)

// candidate is a decoded box before suppression
type candidate struct {
	classID int
	score   float32
	box     image.Rectangle
}

// decodeDarknet reads darknet-style rows: cx, cy, w, h, objectness, class scores...
// Coordinates are normalised to the frame.
func decodeDarknet(data []float32, rows, cols int, frame image.Point, threshold float32) []candidate {
	var out []candidate
	if cols <= 5 {
		return out
	}
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		classID, score := argmax(row[5:])
		if score <= threshold {
			continue
		}

		fw, fh := float32(frame.X), float32(frame.Y)
		out = append(out, candidate{
			classID: classID,
			score:   score,
			box:     centerBox(row[0]*fw, row[1]*fh, row[2]*fw, row[3]*fh, frame),
		})
	}
	return out
}

// decodeYOLOv8 reads the channel-major [4+nc, anchors] head exported by ultralytics.
// Coordinates are in model input pixels.
func decodeYOLOv8(data []float32, channels, anchors int, inputSize int, frame image.Point, threshold float32) []candidate {
	var out []candidate
	if channels <= 4 || len(data) < channels*anchors {
		return out
	}

	sx := float32(frame.X) / float32(inputSize)
	sy := float32(frame.Y) / float32(inputSize)

	for i := 0; i < anchors; i++ {
		classID, score := 0, float32(0)
		for c := 4; c < channels; c++ {
			if s := data[c*anchors+i]; s > score {
				classID, score = c-4, s
			}
		}
		if score <= threshold {
			continue
		}

		cx := data[i] * sx
		cy := data[anchors+i] * sy
		w := data[2*anchors+i] * sx
		h := data[3*anchors+i] * sy
		out = append(out, candidate{classID: classID, score: score, box: centerBox(cx, cy, w, h, frame)})
	}
	return out
}

// finalize applies class-aware NMS, resolves names and returns detections in
// descending confidence order. Unknown class ids are dropped.
func finalize(cands []candidate, registry *Registry, nmsThreshold float64) []Detection {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	kept := make([]Detection, 0, len(cands))
	suppressed := make([]bool, len(cands))
	for i, c := range cands {
		if suppressed[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if !suppressed[j] && cands[j].classID == c.classID && iou(c.box, cands[j].box) > nmsThreshold {
				suppressed[j] = true
			}
		}

		name, ok := registry.Name(c.classID)
		if !ok {
			continue
		}
		kept = append(kept, Detection{
			ClassID:    c.classID,
			ClassName:  name,
			Confidence: float64(c.score),
			Box:        c.box,
		})
	}
	return kept
}

// iou is the intersection over union of two boxes
func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// centerBox converts centre/size to a rectangle clipped to the frame
func centerBox(cx, cy, w, h float32, frame image.Point) image.Rectangle {
	left := int(cx - w/2)
	top := int(cy - h/2)
	rect := image.Rect(left, top, left+int(w), top+int(h))
	return rect.Intersect(image.Rectangle{Max: frame})
}

func argmax(scores []float32) (int, float32) {
	best, bestScore := 0, float32(0)
	for i, s := range scores {
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
