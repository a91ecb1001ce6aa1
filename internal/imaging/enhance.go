package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
)

// Enhancement parameters for ROI crops before embedding.
const (
	enhanceContrast   = 0.5  // +50%, a 1.5x contrast stretch
	enhanceBrightness = 0.04 // roughly +10 levels on mid-tones
	unsharpRadius     = 1.0
	unsharpAmount     = 1.2
)

// Enhance raises contrast, sharpens edges and brightens a crop so small
// icons keep their detail after upscaling to the model input size.
//
// Parameters:
//   - img: The region crop, in any color model.
//
// Returns:
//   - *image.RGBA: A new image the size of img. img is not modified.
//
// # Algorithm
//
//  1. Contrast: bild adjust.Contrast with a fixed gain
//  2. Unsharp mask: bild effect.UnsharpMask with a 1px radius
//  3. Brightness: bild adjust.Brightness with a small positive offset
func Enhance(img image.Image) *image.RGBA {
	out := adjust.Contrast(img, enhanceContrast)
	out = effect.UnsharpMask(out, unsharpRadius, unsharpAmount)
	return adjust.Brightness(out, enhanceBrightness)
}
