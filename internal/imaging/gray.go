package imaging

import (
	"image"
)

// Grayscale converts img to 8-bit luminance using ITU-R BT.601 weights
// (0.299*R + 0.587*G + 0.114*B). The result is anchored at (0,0).
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			row := rgba.Pix[(y+bounds.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(bounds.Min.X-rgba.Rect.Min.X)*4:]
			out := gray.Pix[y*gray.Stride:]
			for x := 0; x < width; x++ {
				p := row[x*4 : x*4+3 : x*4+3]
				out[x] = luminance(uint32(p[0]), uint32(p[1]), uint32(p[2]))
			}
		}
		return gray
	}

	for y := 0; y < height; y++ {
		out := gray.Pix[y*gray.Stride:]
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			out[x] = luminance(r>>8, g>>8, b>>8)
		}
	}
	return gray
}

func luminance(r, g, b uint32) uint8 {
	lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(clamp(int(lum+0.5), 0, 255))
}

// Equalize spreads the gray levels of g over the full 0-255 range using the
// cumulative histogram. A single-level image is returned unchanged.
func Equalize(g *image.Gray) *image.Gray {
	bounds := g.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return out
	}

	var hist [256]int
	for y := 0; y < height; y++ {
		row := g.Pix[(y+bounds.Min.Y-g.Rect.Min.Y)*g.Stride+(bounds.Min.X-g.Rect.Min.X):]
		for x := 0; x < width; x++ {
			hist[row[x]]++
		}
	}

	var cdf [256]int
	cdf[0] = hist[0]
	for i := 1; i < 256; i++ {
		cdf[i] = cdf[i-1] + hist[i]
	}
	minCDF := 0
	for i := 0; i < 256; i++ {
		if cdf[i] > 0 {
			minCDF = cdf[i]
			break
		}
	}
	total := cdf[255]

	var lut [256]uint8
	for i := range lut {
		if total == minCDF {
			lut[i] = uint8(i)
			continue
		}
		lut[i] = uint8(clamp((cdf[i]-minCDF)*255/(total-minCDF), 0, 255))
	}

	for y := 0; y < height; y++ {
		row := g.Pix[(y+bounds.Min.Y-g.Rect.Min.Y)*g.Stride+(bounds.Min.X-g.Rect.Min.X):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < width; x++ {
			dst[x] = lut[row[x]]
		}
	}
	return out
}

// Prepare returns the equalized grayscale form used for keypoint detection.
func Prepare(img image.Image) *image.Gray {
	return Equalize(Grayscale(img))
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
