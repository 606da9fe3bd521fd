package recognize

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Detection is the result of running face detection on image bytes.
// Descriptor is an opaque feature vector; the service never interprets it
// beyond forwarding it to the remote matcher and persisting it.
type Detection struct {
	Detected   bool
	Descriptor []float32
	Confidence float32
}

// Detector produces a face descriptor from image bytes, or reports that no
// face was found. Implementations must be safe for concurrent use.
type Detector interface {
	Detect(imageData []byte) (Detection, error)
}

// DescriptorDim is the descriptor vector length shared by the stub and the
// ONNX ArcFace embedder.
const DescriptorDim = 512

// StubDetector is the default stand-in for a real face-detection model.
// It always reports a detected face and derives a deterministic synthetic
// descriptor from the image bytes, so the same image always maps to the
// same descriptor.
type StubDetector struct{}

func (StubDetector) Detect(imageData []byte) (Detection, error) {
	return Detection{
		Detected:   true,
		Descriptor: syntheticDescriptor(imageData),
		Confidence: 0.95,
	}, nil
}

// syntheticDescriptor expands a SHA-256 digest of the image into a
// normalized 512-dim vector using an xorshift generator seeded per lane.
func syntheticDescriptor(data []byte) []float32 {
	sum := sha256.Sum256(data)

	desc := make([]float32, DescriptorDim)
	for i := range desc {
		seed := binary.LittleEndian.Uint64(sum[(i%3)*8:]) + uint64(i)*0x9e3779b97f4a7c15
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		// Map to [-1, 1).
		desc[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	normalize(desc)
	return desc
}

// normalize performs L2 normalization in-place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
