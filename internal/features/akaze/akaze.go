// Package akaze provides a features.Extractor backed by the OpenCV AKAZE
// detector. It requires OpenCV at build time.
package akaze

import (
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
)

// Extractor detects AKAZE keypoints and their MLDB binary descriptors.
// It is safe for concurrent use.
type Extractor struct {
	mu           sync.Mutex
	akaze        gocv.AKAZE
	maxKeyPoints int
}

// New returns an AKAZE extractor keeping at most maxKeyPoints responses;
// zero keeps all of them. Close releases the OpenCV detector.
func New(maxKeyPoints int) *Extractor {
	return &Extractor{akaze: gocv.NewAKAZE(), maxKeyPoints: maxKeyPoints}
}

// Extract implements features.Extractor.
func (e *Extractor) Extract(img *image.Gray) (features.Features, error) {
	mat, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return features.Features{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	e.mu.Lock()
	kps, desc := e.akaze.DetectAndCompute(mat, mask)
	e.mu.Unlock()
	defer desc.Close()

	if desc.Empty() || len(kps) == 0 {
		return features.Features{}, nil
	}

	raw := desc.ToBytes()
	cols := desc.Cols()
	out := make([]indexed, len(kps))
	for i, kp := range kps {
		out[i] = indexed{
			kp: features.KeyPoint{
				X:        int(math.Round(kp.X)),
				Y:        int(math.Round(kp.Y)),
				Strength: kp.Response,
			},
			desc: features.Descriptor(raw[i*cols : (i+1)*cols]),
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].kp.Strength > out[j].kp.Strength })
	if e.maxKeyPoints > 0 && len(out) > e.maxKeyPoints {
		out = out[:e.maxKeyPoints]
	}

	f := features.Features{
		KeyPoints:   make([]features.KeyPoint, len(out)),
		Descriptors: make([]features.Descriptor, len(out)),
	}
	for i, o := range out {
		f.KeyPoints[i] = o.kp
		f.Descriptors[i] = o.desc
	}
	return f, nil
}

// Close releases the detector.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.akaze.Close()
}

type indexed struct {
	kp   features.KeyPoint
	desc features.Descriptor
}
