package features

import (
	"image"
	"math/bits"
)

// descriptorRadius is the census sampling radius; keypoints closer than this
// to the image edge sample clamped pixels.
const descriptorRadius = 4

// DescriptorBytes is the length of a census descriptor.
const DescriptorBytes = 8

// Descriptor is a binary feature descriptor.
type Descriptor []byte

// Hamming returns the number of differing bits. Descriptors of different
// lengths are compared over the shorter one.
func Hamming(a, b Descriptor) int {
	n := min(len(a), len(b))
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d
}

// Census returns the 64-bit census code of (x, y): one bit per sample of the
// 8x8 grid of offsets in {-4..-1, 1..4}, set when the sample is brighter
// than the center.
func Census(img *image.Gray, x, y int) Descriptor {
	b := img.Bounds()
	center := img.Pix[img.PixOffset(x, y)]
	desc := make(Descriptor, DescriptorBytes)
	bit := 0
	for dy := -descriptorRadius; dy <= descriptorRadius; dy++ {
		if dy == 0 {
			continue
		}
		for dx := -descriptorRadius; dx <= descriptorRadius; dx++ {
			if dx == 0 {
				continue
			}
			px := min(max(x+dx, b.Min.X), b.Max.X-1)
			py := min(max(y+dy, b.Min.Y), b.Max.Y-1)
			if img.Pix[img.PixOffset(px, py)] > center {
				desc[bit/8] |= 1 << (bit % 8)
			}
			bit++
		}
	}
	return desc
}
