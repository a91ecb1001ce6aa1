// Package roi generates the candidate regions verified by the embedding model.
//
// Regions come from three sources, in priority order: jittered windows around
// every localizer hit, a vertical scan along the hero column, and, when the
// localizer found nothing at all, a full-frame grid. The total is capped.
package roi

import (
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
)

// Origin records why a region was generated.
type Origin int

const (
	// OriginLocalizer regions surround a localizer hit.
	OriginLocalizer Origin = iota
	// OriginColumn regions scan the estimated hero column.
	OriginColumn
	// OriginFallback regions tile the whole frame.
	OriginFallback
)

func (o Origin) String() string {
	switch o {
	case OriginLocalizer:
		return "localizer"
	case OriginColumn:
		return "column"
	case OriginFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText encodes the origin by name.
func (o Origin) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Region is one candidate crop.
type Region struct {
	Rect   hero.Rect `json:"rect"`
	Origin Origin    `json:"origin"`
}

// Options size and bound the generated regions.
type Options struct {
	// Window is the side of every square region.
	Window int
	// MaxCount caps the number of regions.
	MaxCount int
	// Jitter is the pixel offset used around hits and across the column.
	Jitter int
	// ColumnStrideRatio is the column scan step as a fraction of Window.
	ColumnStrideRatio float64
	// FallbackStrideRatio is the full-frame grid step as a fraction of Window.
	FallbackStrideRatio float64
}

// DefaultOptions returns the region settings for 93px hero rows.
func DefaultOptions() Options {
	return Options{Window: 93, MaxCount: 150, Jitter: 3, ColumnStrideRatio: 0.8, FallbackStrideRatio: 0.9}
}

// Generator produces candidate regions for a frame.
type Generator struct {
	opts Options
}

// New returns a Generator. Zero fields take their DefaultOptions value.
func New(opts Options) *Generator {
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = def.MaxCount
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.ColumnStrideRatio <= 0 {
		opts.ColumnStrideRatio = def.ColumnStrideRatio
	}
	if opts.FallbackStrideRatio <= 0 {
		opts.FallbackStrideRatio = def.FallbackStrideRatio
	}
	return &Generator{opts: opts}
}

// Window returns the region side.
func (g *Generator) Window() int { return g.opts.Window }

// Generate returns the regions for a width x height frame given the
// localizer output. Localizer regions come first; generation stops at
// MaxCount. Every region lies inside the frame and no region repeats.
func (g *Generator) Generate(loc hero.ColumnLocalization, width, height int) []Region {
	if width <= 0 || height <= 0 {
		return nil
	}
	b := &builder{max: g.opts.MaxCount, seen: make(map[hero.Rect]bool)}

	if width < g.opts.Window || height < g.opts.Window {
		b.add(hero.Rect{Width: width, Height: height}, fallbackOrLocalizer(loc))
		return b.regions
	}

	hits := g.hitRegions(loc.Positions, width, height, b)
	if loc.HasColumn {
		g.columnScan(loc.ColumnX, hits, width, height, b)
	}
	if len(loc.Positions) == 0 && !loc.HasColumn {
		g.fallbackGrid(width, height, b)
	}
	return b.regions
}

func fallbackOrLocalizer(loc hero.ColumnLocalization) Origin {
	if len(loc.Positions) > 0 {
		return OriginLocalizer
	}
	if loc.HasColumn {
		return OriginColumn
	}
	return OriginFallback
}

// hitRegions adds a cross of jittered windows around each position, center
// first, and returns the unjittered window of every hit.
func (g *Generator) hitRegions(positions []hero.Position, width, height int, b *builder) []hero.Rect {
	j := g.opts.Jitter
	offsets := [][2]int{{0, 0}, {-j, 0}, {j, 0}, {0, -j}, {0, j}}
	if j == 0 {
		offsets = offsets[:1]
	}

	hits := make([]hero.Rect, 0, len(positions))
	for _, p := range positions {
		center, _ := p.Rect(g.opts.Window).ShiftInto(width, height)
		hits = append(hits, center)
		for _, off := range offsets {
			r := hero.RectAround(p.X+off[0], p.Y+off[1], g.opts.Window, g.opts.Window)
			if r, ok := r.ShiftInto(width, height); ok {
				b.add(r, OriginLocalizer)
			}
		}
	}
	return hits
}

// columnScan walks down the column with horizontal jitter, skipping rows
// that a hit window already covers by more than half a window.
func (g *Generator) columnScan(columnX int, hits []hero.Rect, width, height int, b *builder) {
	w := g.opts.Window
	stride := max(1, int(g.opts.ColumnStrideRatio*float64(w)))
	baseX := columnX - w/2
	jitters := []int{0, -g.opts.Jitter, g.opts.Jitter}
	if g.opts.Jitter == 0 {
		jitters = jitters[:1]
	}

	for y := 0; y+w <= height; y += stride {
		row := hero.Rect{X: baseX, Y: y, Width: w, Height: w}
		if coveredByHit(row, hits, w/2) {
			continue
		}
		for _, dx := range jitters {
			r := row
			r.X += dx
			if r.Within(width, height) {
				b.add(r, OriginColumn)
			}
		}
	}
}

func coveredByHit(row hero.Rect, hits []hero.Rect, limit int) bool {
	for _, h := range hits {
		if row.VerticalOverlap(h) > limit {
			return true
		}
	}
	return false
}

func (g *Generator) fallbackGrid(width, height int, b *builder) {
	w := g.opts.Window
	stride := max(1, int(g.opts.FallbackStrideRatio*float64(w)))
	for y := 0; y+w <= height; y += stride {
		for x := 0; x+w <= width; x += stride {
			b.add(hero.Rect{X: x, Y: y, Width: w, Height: w}, OriginFallback)
		}
	}
}

type builder struct {
	regions []Region
	seen    map[hero.Rect]bool
	max     int
}

func (b *builder) add(r hero.Rect, origin Origin) {
	if len(b.regions) >= b.max || b.seen[r] {
		return
	}
	b.seen[r] = true
	b.regions = append(b.regions, Region{Rect: r, Origin: origin})
}

// Rects returns the rectangles of regions.
func Rects(regions []Region) []hero.Rect {
	out := make([]hero.Rect, len(regions))
	for i, r := range regions {
		out[i] = r.Rect
	}
	return out
}
