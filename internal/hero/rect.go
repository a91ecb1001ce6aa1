package hero

import (
	"image"
)

// Rect is an axis-aligned region in source-image pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectAround returns a width x height rectangle centered on (cx, cy).
func RectAround(cx, cy, width, height int) Rect {
	return Rect{X: cx - width/2, Y: cy - height/2, Width: width, Height: height}
}

// FromImage converts an image.Rectangle.
func FromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Area returns the pixel area, zero for empty rectangles.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Center returns the integer center point.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Intersect returns the overlapping region, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1, y1 := max(r.X, o.X), max(r.Y, o.Y)
	x2, y2 := min(r.Right(), o.Right()), min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IntersectionArea returns the area shared by r and o.
func (r Rect) IntersectionArea(o Rect) int {
	return r.Intersect(o).Area()
}

// IoU returns intersection-over-union in [0,1].
func (r Rect) IoU(o Rect) float64 {
	inter := r.IntersectionArea(o)
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	return float64(inter) / float64(union)
}

// VerticalOverlap returns the length of the shared Y span.
func (r Rect) VerticalOverlap(o Rect) int {
	overlap := min(r.Bottom(), o.Bottom()) - max(r.Y, o.Y)
	if overlap < 0 {
		return 0
	}
	return overlap
}

// Within reports whether r lies fully inside a width x height frame.
func (r Rect) Within(width, height int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

// ShiftInto moves r the minimum distance needed to lie inside a
// width x height frame. It reports false when r is larger than the frame.
func (r Rect) ShiftInto(width, height int) (Rect, bool) {
	if r.Width > width || r.Height > height || r.Empty() {
		return r, false
	}
	r.X = min(max(r.X, 0), width-r.Width)
	r.Y = min(max(r.Y, 0), height-r.Height)
	return r, true
}
