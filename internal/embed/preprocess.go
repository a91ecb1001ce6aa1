package embed

import (
	"image"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
)

// ImageNet channel statistics used to normalize model inputs.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// Prepare crops r from frame, optionally enhances it and letterboxes it onto
// a black size x size square.
func Prepare(frame image.Image, r hero.Rect, size int, enhance bool) (*image.NRGBA, error) {
	crop, err := imaging.CropRegion(frame, r.Image())
	if err != nil {
		return nil, err
	}
	if enhance {
		return imaging.Letterbox(imaging.Enhance(crop), size), nil
	}
	return imaging.Letterbox(crop, size), nil
}

// Fill writes img into dst, one channel plane after another, normalized with
// Mean and Std. img must be square with side equal to the tensor side.
func Fill(dst []float32, img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4 : x*4+3 : x*4+3]
			i := y*w + x
			for c := 0; c < 3; c++ {
				dst[c*plane+i] = (float32(p[c])/255 - Mean[c]) / Std[c]
			}
		}
	}
}
