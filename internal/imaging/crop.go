package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageResult carries an encoded image back to MCP clients.
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as a base64 PNG result.
func EncodePNG(img image.Image) (*ImageResult, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &ImageResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropRegion extracts r from img.
//
// Parameters:
//   - img: Source image.
//   - r: Region in img's coordinate space. It is clipped to img.Bounds().
//
// Returns:
//   - *image.NRGBA: The clipped region, anchored at (0,0).
//   - error: Non-nil when r does not intersect the image.
func CropRegion(img image.Image, r image.Rectangle) (*image.NRGBA, error) {
	bounds := img.Bounds()
	clipped := r.Intersect(bounds)
	if clipped.Empty() {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	return imaging.Crop(img, clipped), nil
}

// Letterbox scales img to fit a size x size square, preserving aspect ratio,
// and centers it on a black canvas.
//
// The longer side becomes size pixels and the shorter side is scaled in
// proportion, never below one pixel. Lanczos resampling is used. An image
// already size x size is cloned unchanged; an empty image yields a black
// canvas.
func Letterbox(img image.Image, size int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return imaging.Clone(img)
	}
	canvas := imaging.New(size, size, color.Black)
	if b.Empty() {
		return canvas
	}
	fitted := imaging.Resize(img, fitWidth(b.Dx(), b.Dy(), size), fitHeight(b.Dx(), b.Dy(), size), imaging.Lanczos)
	return imaging.PasteCenter(canvas, fitted)
}

func fitWidth(w, h, size int) int {
	if w >= h {
		return size
	}
	return max(1, w*size/h)
}

func fitHeight(w, h, size int) int {
	if h >= w {
		return size
	}
	return max(1, h*size/w)
}

// TopLeftBanner returns the region holding the map-name banner: the first
// third of the width and the first tenth of the height.
func TopLeftBanner(bounds image.Rectangle) image.Rectangle {
	return image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+bounds.Dx()/3, bounds.Min.Y+bounds.Dy()/10)
}
