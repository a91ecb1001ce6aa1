package features

import (
	"image"
	"math"
)

// Strength computes a keypoint response at one pixel.
type Strength interface {
	// Name identifies the strategy in logs and configuration.
	Name() string
	// Radius is the neighborhood the response reads around (x, y).
	Radius() int
	// At returns the response at (x, y). Callers keep (x, y) at least
	// Radius pixels inside the image.
	At(img *image.Gray, x, y int) float64
}

// Hessian responds to blobs and corners with |Dxx*Dyy - Dxy^2|.
type Hessian struct{}

// Name implements Strength.
func (Hessian) Name() string { return "hessian" }

// Radius implements Strength.
func (Hessian) Radius() int { return 1 }

// At implements Strength.
func (Hessian) At(img *image.Gray, x, y int) float64 {
	p := pix(img, x, y)
	dxx := pix(img, x+1, y) + pix(img, x-1, y) - 2*p
	dyy := pix(img, x, y+1) + pix(img, x, y-1) - 2*p
	dxy := (pix(img, x+1, y-1) + pix(img, x-1, y+1) - pix(img, x-1, y-1) - pix(img, x+1, y+1)) / 4
	return math.Abs(dxx*dyy - dxy*dxy)
}

// Contrast responds to textured regions with the standard deviation of a
// (2*Size+1)^2 window. The zero value uses a 5x5 window.
type Contrast struct {
	Size int
}

// Name implements Strength.
func (Contrast) Name() string { return "contrast" }

// Radius implements Strength.
func (c Contrast) Radius() int {
	if c.Size <= 0 {
		return 2
	}
	return c.Size
}

// At implements Strength.
func (c Contrast) At(img *image.Gray, x, y int) float64 {
	r := c.Radius()
	var sum, sumSq float64
	n := 0
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			v := pix(img, x+dx, y+dy)
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}

func pix(img *image.Gray, x, y int) float64 {
	return float64(img.Pix[img.PixOffset(x, y)])
}
