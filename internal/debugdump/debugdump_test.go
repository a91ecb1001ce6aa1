package debugdump

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

func testFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 300, 300))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func testSession() Session {
	return Session{
		ID:          "0123456789abcdef",
		Timestamp:   time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		FrameWidth:  300,
		FrameHeight: 300,
		Thresholds:  Thresholds{Logging: 0.1, Decision: 0.65, Confirmation: 0.4, YOverlapRatio: 0.5, NMSIoU: 0.4, Window: 93},
		Localization: hero.ColumnLocalization{
			ColumnX:   150,
			HasColumn: true,
			Positions: []hero.Position{{Name: "Alpha", X: 150, Y: 60, MatchCount: 9}},
		},
		Detections: []hero.Detection{{Name: "Alpha", Confidence: 0.8, Rect: hero.Rect{X: 104, Y: 14, Width: 93, Height: 93}}},
		FinalResult: []hero.Entry{{
			Name: "Alpha", Provenance: hero.LocalizerConfirmed, Confidence: 0.8,
			Rect: hero.Rect{X: 104, Y: 14, Width: 93, Height: 93},
		}},
	}
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	w, err := New(dir, WithLogger(logger.Nop()), WithCrops(true))
	require.NoError(t, err)
	assert.Equal(t, dir, w.Dir())

	regions := []roi.Region{
		{Rect: hero.Rect{X: 104, Y: 14, Width: 93, Height: 93}, Origin: roi.OriginLocalizer},
		{Rect: hero.Rect{X: 104, Y: 150, Width: 93, Height: 93}, Origin: roi.OriginColumn},
		{Rect: hero.Rect{X: 400, Y: 400, Width: 93, Height: 93}, Origin: roi.OriginColumn},
	}
	path, err := w.Write(context.Background(), testFrame(), testSession(), regions)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session_20260304_050607_01234567.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 3, got["total_rois"])
	assert.Equal(t, map[string]any{"localizer": 1.0, "column": 2.0}, got["rois_by_origin"])
	final := got["final_detections"].([]any)[0].(map[string]any)
	assert.Equal(t, "localizer_confirmed", final["provenance"])
	assert.Contains(t, got, "detections_above_threshold")
	assert.Contains(t, got, "thresholds")

	_, err = os.Stat(filepath.Join(dir, "session_20260304_050607_01234567.png"))
	assert.NoError(t, err)

	crops, err := os.ReadDir(filepath.Join(dir, "session_20260304_050607_01234567_crops"))
	require.NoError(t, err)
	assert.Len(t, crops, 2, "regions outside the frame are not saved")
}

func TestWrite_WithoutCrops(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, WithLogger(logger.Nop()))
	require.NoError(t, err)

	_, err = w.Write(context.Background(), testFrame(), testSession(), []roi.Region{{Rect: hero.Rect{Width: 10, Height: 10}}})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "json and png only")
}

func TestAnnotate(t *testing.T) {
	out := Annotate(testFrame(), testSession())
	assert.Equal(t, color.RGBA{255, 255, 0, 255}, out.RGBAAt(150, 250), "column line")
	assert.Equal(t, color.RGBA{255, 0, 255, 255}, out.RGBAAt(150, 64), "hit centroid cross")
	assert.NotEqual(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(104, 60), "entry box edge")
}

func TestCountOrigins(t *testing.T) {
	got := CountOrigins([]roi.Region{{Origin: roi.OriginFallback}, {Origin: roi.OriginFallback}})
	assert.Equal(t, map[string]int{"fallback": 2}, got)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "abcdefgh", shortID("abcdefghijk"))
}
