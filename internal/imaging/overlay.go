package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Mark is one labelled rectangle drawn by Annotate.
type Mark struct {
	Rect  image.Rectangle
	Label string
	// Group selects the palette color; marks of one hero share a group.
	Group int
	// Dashed draws only every other pixel of the outline.
	Dashed bool
}

// Annotation describes everything drawn over a frame for a debug session.
type Annotation struct {
	// ColumnX is drawn as a vertical line when HasColumn is set.
	ColumnX     int
	HasColumn   bool
	ColumnColor string
	Marks       []Mark
	// Points are drawn as small crosses, e.g. localizer centroids.
	Points []image.Point
}

// Annotate draws a onto a copy of img.
//
// Parameters:
//   - img: The source frame. It is not modified.
//   - a: What to draw. The column line uses ColumnColor (a "#rrggbb" hex
//     string; yellow when it does not parse). Marks get one palette color per
//     Group and an optional digit label. Points are drawn as magenta crosses.
//
// Returns:
//   - *image.RGBA: The annotated copy, with the same bounds as img.
//
// Drawing is clipped to the frame, so marks that extend past an edge are cut
// rather than rejected.
func Annotate(img image.Image, a Annotation) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	if a.HasColumn {
		lineColor, err := parseHexColor(a.ColumnColor)
		if err != nil {
			lineColor = color.RGBA{255, 255, 0, 255}
		}
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			result.Set(a.ColumnX, y, lineColor)
		}
	}

	groups := 0
	for _, m := range a.Marks {
		groups = max(groups, max(m.Group, 0)+1)
	}
	palette := Palette(groups)

	for _, m := range a.Marks {
		c := palette[max(m.Group, 0)]
		drawRect(result, m.Rect, c, m.Dashed)
		if m.Label != "" {
			drawLabel(result, m.Rect.Min.X+2, m.Rect.Min.Y+2, m.Label, color.RGBA{255, 255, 255, 255}, c)
		}
	}

	cross := color.RGBA{255, 0, 255, 255}
	for _, p := range a.Points {
		for d := -4; d <= 4; d++ {
			setClipped(result, p.X+d, p.Y, cross)
			setClipped(result, p.X, p.Y+d, cross)
		}
	}
	return result
}

// Palette returns n visually distinct opaque colors spread around the hue wheel.
func Palette(n int) []color.RGBA {
	colors := make([]color.RGBA, n)
	for i := range colors {
		hue := float64(i) * 360.0 / float64(n)
		r, g, b := colorful.Hsv(hue, 0.85, 0.95).RGB255()
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, dashed bool) {
	for x := r.Min.X; x < r.Max.X; x++ {
		if dashed && x%2 == 1 {
			continue
		}
		setClipped(img, x, r.Min.Y, c)
		setClipped(img, x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		if dashed && y%2 == 1 {
			continue
		}
		setClipped(img, r.Min.X, y, c)
		setClipped(img, r.Max.X-1, y, c)
	}
}

func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLabel draws a short label with a 3x5 pixel font. Only digits, '#',
// '.' and ',' have glyphs; other runes leave a blank cell.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
		'.': {"000", "000", "000", "000", "010"},
		'#': {"101", "111", "101", "111", "101"},
	}

	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setClipped(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					setClipped(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
