package localize

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

const iconSize = 64

func icon(seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			v := uint8(1 + rng.Intn(255))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// screenshot pastes icons onto a black frame. Offsets are multiples of the
// detector stride so screen keypoints line up with template keypoints.
func screenshot(w, h int, icons map[image.Point]*image.RGBA) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(frame.Pix); i += 4 {
		frame.Pix[i] = 255
	}
	for at, ic := range icons {
		for y := 0; y < iconSize; y++ {
			for x := 0; x < iconSize; x++ {
				frame.SetRGBA(at.X+x, at.Y+y, ic.RGBAAt(x, y))
			}
		}
	}
	return frame
}

func template(t *testing.T, ex features.Extractor, name string, img image.Image) reference.Template {
	t.Helper()
	f, err := ex.Extract(imaging.Prepare(img))
	require.NoError(t, err)
	require.False(t, f.Empty())
	return reference.Template{Name: name, Width: iconSize, Height: iconSize, Features: f}
}

func newLocalizer(t *testing.T, names map[string]int64) (*Localizer, map[string]*image.RGBA) {
	t.Helper()
	ex := features.NewDetector(features.Hessian{}, features.DefaultOptions())
	icons := make(map[string]*image.RGBA)
	var tpls []reference.Template
	for name, seed := range names {
		icons[name] = icon(seed)
		tpls = append(tpls, template(t, ex, name, icons[name]))
	}
	opts := DefaultOptions()
	opts.MinMatchCount = 20
	return New(ex, tpls, opts, WithLogger(logger.Nop())), icons
}

func TestLocalize_FindsHeroesAndColumn(t *testing.T) {
	loc, icons := newLocalizer(t, map[string]int64{"Alpha": 1, "Beta": 2, "Gamma": 3})
	require.Equal(t, 3, loc.Heroes())

	frame := screenshot(480, 400, map[image.Point]*image.RGBA{
		{X: 300, Y: 60}:  icons["Alpha"],
		{X: 300, Y: 210}: icons["Beta"],
	})

	res, err := loc.Localize(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, res.Positions, 2)

	byName := map[string]hero.Position{}
	for _, p := range res.Positions {
		byName[p.Name] = p
	}
	assert.NotContains(t, byName, "Gamma")
	assert.InDelta(t, 332, byName["Alpha"].X, 8)
	assert.InDelta(t, 92, byName["Alpha"].Y, 8)
	assert.InDelta(t, 242, byName["Beta"].Y, 8)
	assert.GreaterOrEqual(t, res.Positions[0].MatchCount, res.Positions[1].MatchCount)

	assert.True(t, res.HasColumn)
	assert.InDelta(t, 332, res.ColumnX, 10)
}

func TestLocalize_Deterministic(t *testing.T) {
	loc, icons := newLocalizer(t, map[string]int64{"Alpha": 1, "Beta": 2})
	frame := screenshot(400, 300, map[image.Point]*image.RGBA{
		{X: 99, Y: 30}:  icons["Alpha"],
		{X: 99, Y: 150}: icons["Beta"],
	})

	first, err := loc.Localize(context.Background(), frame)
	require.NoError(t, err)
	second, err := loc.Localize(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocalize_BlankFrame(t *testing.T) {
	loc, _ := newLocalizer(t, map[string]int64{"Alpha": 1})

	res, err := loc.Localize(context.Background(), screenshot(200, 200, nil))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestLocalize_NoTemplates(t *testing.T) {
	ex := features.NewDetector(features.Hessian{}, features.DefaultOptions())
	loc := New(ex, []reference.Template{{Name: "Empty"}}, Options{}, WithLogger(logger.Nop()))
	assert.Zero(t, loc.Heroes())

	res, err := loc.Localize(context.Background(), icon(9))
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestLocalize_Canceled(t *testing.T) {
	loc, icons := newLocalizer(t, map[string]int64{"Alpha": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loc.Localize(ctx, screenshot(200, 200, map[image.Point]*image.RGBA{{X: 30, Y: 30}: icons["Alpha"]}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalize_MinHeroesForColumn(t *testing.T) {
	ex := features.NewDetector(features.Hessian{}, features.DefaultOptions())
	alpha := icon(1)
	opts := Options{MinMatchCount: 20, MinHeroesForColumn: 2}
	loc := New(ex, []reference.Template{template(t, ex, "Alpha", alpha)}, opts, WithLogger(logger.Nop()))

	res, err := loc.Localize(context.Background(), screenshot(300, 300, map[image.Point]*image.RGBA{{X: 60, Y: 60}: alpha}))
	require.NoError(t, err)
	require.Len(t, res.Positions, 1)
	assert.False(t, res.HasColumn, "one hero is not enough to place the column")
	assert.False(t, res.Empty())
}

func TestLocalize_BestTemplateWins(t *testing.T) {
	ex := features.NewDetector(features.Hessian{}, features.DefaultOptions())
	alpha, decoy := icon(1), icon(42)
	loc := New(ex, []reference.Template{
		template(t, ex, "Alpha", decoy),
		template(t, ex, "Alpha", alpha),
	}, Options{MinMatchCount: 20}, WithLogger(logger.Nop()))
	require.Equal(t, 1, loc.Heroes())

	res, err := loc.Localize(context.Background(), screenshot(300, 300, map[image.Point]*image.RGBA{{X: 120, Y: 120}: alpha}))
	require.NoError(t, err)
	require.Len(t, res.Positions, 1)
	assert.InDelta(t, 152, res.Positions[0].X, 8)
}

func TestColumnCenter(t *testing.T) {
	tests := []struct {
		name string
		xs   []int
		want int
	}{
		{"single", []int{333}, 330},
		{"mode beats outlier", []int{331, 328, 334, 700}, 330},
		{"half rounds up", []int{335}, 340},
		{"tie goes to smaller x", []int{100, 500}, 100},
		{"tie between buckets", []int{502, 498, 101, 99}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ps []hero.Position
			for _, x := range tt.xs {
				ps = append(ps, hero.Position{X: x})
			}
			assert.Equal(t, tt.want, ColumnCenter(ps, 10))
		})
	}
}
