package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// drawText draws text on an image using basicfont
func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// bannerFrame renders text scaled up into the top-left corner of a dark
// width x height frame, on a white strip like the in-game banner.
func bannerFrame(width, height int, text string, scale int) *image.RGBA {
	small := image.NewRGBA(image.Rect(0, 0, len(text)*7+20, 20))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	drawText(small, 10, 15, text, color.Black)

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.RGBA{30, 30, 40, 255}), image.Point{}, draw.Src)
	for y := 0; y < small.Bounds().Dy()*scale; y++ {
		for x := 0; x < small.Bounds().Dx()*scale; x++ {
			frame.Set(x+4, y+4, small.At(x/scale, y/scale))
		}
	}
	return frame
}

func skipWithoutTesseract(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "language") || strings.Contains(msg, "library") {
		t.Skipf("Tesseract not available: %v", err)
	}
}

func TestReadBanner(t *testing.T) {
	r := NewReader([]string{"eng"}, WithLogger(logger.Nop()))
	frame := bannerFrame(1200, 600, "SPIDER ISLANDS", 3)

	res, err := r.ReadBanner(context.Background(), frame)
	skipWithoutTesseract(t, err)
	if err != nil {
		t.Fatalf("ReadBanner failed: %v", err)
	}

	want := Bounds{X1: 0, Y1: 0, X2: 400, Y2: 60}
	if res.Region != want {
		t.Errorf("Region = %+v, want %+v", res.Region, want)
	}
	for _, w := range res.Words {
		if w.Confidence <= DefaultMinConfidence {
			t.Errorf("word %q kept with confidence %.2f", w.Text, w.Confidence)
		}
		if w.Bounds.X2 > 400 || w.Bounds.Y2 > 60 {
			t.Errorf("word %q outside banner: %+v", w.Text, w.Bounds)
		}
	}
	t.Logf("banner text: %q", res.Text)
}

func TestReadRegion_OffsetsWords(t *testing.T) {
	r := NewReader(nil, WithLogger(logger.Nop()), WithMinConfidence(0))
	if got := r.Languages(); len(got) != 1 || got[0] != "eng" {
		t.Fatalf("default languages = %v", got)
	}

	frame := bannerFrame(800, 400, "HELLO", 3)
	region := image.Rect(2, 2, 300, 80)
	res, err := r.ReadRegion(context.Background(), frame, region)
	skipWithoutTesseract(t, err)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	for _, w := range res.Words {
		if w.Bounds.X1 < region.Min.X || w.Bounds.Y1 < region.Min.Y {
			t.Errorf("word %q not shifted into frame coordinates: %+v", w.Text, w.Bounds)
		}
	}
}

func TestReadRegion_OutsideFrame(t *testing.T) {
	r := NewReader([]string{"eng"}, WithLogger(logger.Nop()))
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if _, err := r.ReadRegion(context.Background(), frame, image.Rect(200, 200, 300, 300)); err == nil {
		t.Error("ReadRegion should fail for a region outside the frame")
	}
}

func TestReadRegion_Canceled(t *testing.T) {
	r := NewReader([]string{"eng"}, WithLogger(logger.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if _, err := r.ReadBanner(ctx, frame); err != context.Canceled {
		t.Errorf("ReadBanner error = %v, want context.Canceled", err)
	}
}

func TestKeepWords(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Box: image.Rect(1, 2, 30, 20), Word: "Spider", Confidence: 91},
		{Box: image.Rect(35, 2, 70, 20), Word: "Islands", Confidence: 50},
		{Box: image.Rect(75, 2, 80, 20), Word: "  ", Confidence: 99},
		{Box: image.Rect(85, 2, 99, 20), Word: "Tokyo ", Confidence: 50.5},
	}
	got := keepWords(boxes, DefaultMinConfidence, image.Point{X: 10, Y: 100})

	if len(got) != 2 {
		t.Fatalf("kept %d words, want 2: %+v", len(got), got)
	}
	if got[0].Text != "Spider" || got[1].Text != "Tokyo" {
		t.Errorf("words = %q, %q", got[0].Text, got[1].Text)
	}
	if want := (Bounds{X1: 11, Y1: 102, X2: 40, Y2: 120}); got[0].Bounds != want {
		t.Errorf("bounds = %+v, want %+v", got[0].Bounds, want)
	}
	if got[0].Confidence < 0.9 || got[0].Confidence > 0.92 {
		t.Errorf("confidence = %v, want 0.91", got[0].Confidence)
	}
}
