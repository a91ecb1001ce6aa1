package features

import (
	"image"
	"sort"
)

// KeyPoint is a detected feature location and its detector response.
type KeyPoint struct {
	X        int
	Y        int
	Strength float64
}

// Point returns the keypoint location.
func (k KeyPoint) Point() image.Point { return image.Point{X: k.X, Y: k.Y} }

// Features holds keypoints and their descriptors; Descriptors[i] describes KeyPoints[i].
type Features struct {
	KeyPoints   []KeyPoint
	Descriptors []Descriptor
}

// Len returns the number of described keypoints.
func (f Features) Len() int { return len(f.Descriptors) }

// Empty reports whether no keypoints were described.
func (f Features) Empty() bool { return len(f.Descriptors) == 0 }

// Extractor detects and describes keypoints in a grayscale image.
type Extractor interface {
	Extract(img *image.Gray) (Features, error)
}

// Options control keypoint detection.
type Options struct {
	// Stride is the scan step in pixels, in both directions.
	Stride int
	// Threshold is the minimum response for a keypoint; equal values are rejected.
	Threshold float64
	// MaxKeyPoints keeps only the strongest responses.
	MaxKeyPoints int
	// Border is the margin left unscanned. It is raised to whatever the
	// strategy and the descriptor need.
	Border int
}

// DefaultOptions returns the detection settings used for screenshots.
func DefaultOptions() Options {
	return Options{Stride: 3, Threshold: 35, MaxKeyPoints: 1000, Border: 3}
}

// Detector scans an image at a fixed stride with a Strength strategy and
// describes the strongest responses.
type Detector struct {
	strength Strength
	opts     Options
}

// NewDetector returns a Detector. Non-positive stride and keypoint limits
// fall back to DefaultOptions.
func NewDetector(strength Strength, opts Options) *Detector {
	def := DefaultOptions()
	if opts.Stride <= 0 {
		opts.Stride = def.Stride
	}
	if opts.MaxKeyPoints <= 0 {
		opts.MaxKeyPoints = def.MaxKeyPoints
	}
	opts.Border = max(opts.Border, strength.Radius(), descriptorRadius)
	return &Detector{strength: strength, opts: opts}
}

// Strategy returns the name of the strength strategy.
func (d *Detector) Strategy() string { return d.strength.Name() }

// Detect returns the keypoints above threshold, strongest first, truncated to
// MaxKeyPoints. Ties are ordered by row then column so output is deterministic.
func (d *Detector) Detect(img *image.Gray) []KeyPoint {
	b := img.Bounds()
	border := d.opts.Border

	var kps []KeyPoint
	for y := b.Min.Y + border; y < b.Max.Y-border; y += d.opts.Stride {
		for x := b.Min.X + border; x < b.Max.X-border; x += d.opts.Stride {
			s := d.strength.At(img, x, y)
			if s > d.opts.Threshold {
				kps = append(kps, KeyPoint{X: x, Y: y, Strength: s})
			}
		}
	}

	sort.Slice(kps, func(i, j int) bool {
		if kps[i].Strength != kps[j].Strength {
			return kps[i].Strength > kps[j].Strength
		}
		if kps[i].Y != kps[j].Y {
			return kps[i].Y < kps[j].Y
		}
		return kps[i].X < kps[j].X
	})
	if len(kps) > d.opts.MaxKeyPoints {
		kps = kps[:d.opts.MaxKeyPoints]
	}
	return kps
}

// Extract detects keypoints and computes their census descriptors.
func (d *Detector) Extract(img *image.Gray) (Features, error) {
	kps := d.Detect(img)
	descs := make([]Descriptor, len(kps))
	for i, kp := range kps {
		descs[i] = Census(img, kp.X, kp.Y)
	}
	return Features{KeyPoints: kps, Descriptors: descs}, nil
}
