package embed

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
)

func TestPrepare_Letterbox(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := range frame.Pix {
		frame.Pix[i] = 255
	}

	img, err := Prepare(frame, hero.Rect{X: 10, Y: 10, Width: 40, Height: 20}, 16, false)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, img.NRGBAAt(8, 0), "padding is black")
	assert.Equal(t, uint8(255), img.NRGBAAt(8, 8).R)

	_, err = Prepare(frame, hero.Rect{X: 200, Y: 200, Width: 5, Height: 5}, 16, false)
	assert.Error(t, err)
}

func TestPrepare_Enhance(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range frame.Pix {
		frame.Pix[i] = 100
	}
	plain, err := Prepare(frame, hero.Rect{Width: 32, Height: 32}, 32, false)
	require.NoError(t, err)
	enhanced, err := Prepare(frame, hero.Rect{Width: 32, Height: 32}, 32, true)
	require.NoError(t, err)
	assert.NotEqual(t, plain.Pix, enhanced.Pix)
}

func TestFill(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 0, 255, 255
	}
	img.SetNRGBA(1, 1, color.NRGBA{0, 0, 0, 255})

	dst := make([]float32, 3*2*2)
	Fill(dst, img)

	assert.InDelta(t, (1-0.485)/0.229, dst[0], 1e-5, "R plane, pixel (0,0)")
	assert.InDelta(t, (0-0.456)/0.224, dst[4], 1e-5, "G plane, pixel (0,0)")
	assert.InDelta(t, (1-0.406)/0.225, dst[8], 1e-5, "B plane, pixel (0,0)")
	assert.InDelta(t, (0-0.485)/0.229, dst[3], 1e-5, "R plane, pixel (1,1)")
}

func TestTensorImage(t *testing.T) {
	tensor := NewTensor(3, 3, 2, 2)
	require.Len(t, tensor.Data, 36)
	tensor.Image(1)[0] = 7
	assert.Equal(t, float32(7), tensor.Data[12])
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
	Normalize(nil)
}

func TestSplit(t *testing.T) {
	assert.Empty(t, split(nil, 4))

	batches := split(make([]roi.Region, 7), 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)
}
