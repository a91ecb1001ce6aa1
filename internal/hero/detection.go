package hero

import (
	"fmt"
)

// MaxSlots is the number of hero slots on the selection screen.
const MaxSlots = 6

// Source tags which detector produced a piece of evidence.
type Source int

const (
	// SourceEmbedding marks evidence from the embedding verifier.
	SourceEmbedding Source = iota
	// SourceLocalizer marks evidence from keypoint matching in the column localizer.
	SourceLocalizer
)

func (s Source) String() string {
	switch s {
	case SourceEmbedding:
		return "embedding"
	case SourceLocalizer:
		return "localizer"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// MarshalText encodes the source by name.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Detection is one candidate sighting of a hero at a specific region.
type Detection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Rect       Rect    `json:"rect"`
	Source     Source  `json:"source"`
}

// Position is a hero found by the column localizer. X and Y are the centroid
// of the matched keypoints; MatchCount is the number of accepted matches.
type Position struct {
	Name       string `json:"name"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	MatchCount int    `json:"match_count"`
}

// Rect returns the window x window square centered on the position.
func (p Position) Rect(window int) Rect {
	return RectAround(p.X, p.Y, window, window)
}

// ColumnLocalization is the output of the column localizer. HasColumn is
// false when the column center could not be estimated.
type ColumnLocalization struct {
	ColumnX   int        `json:"column_x"`
	HasColumn bool       `json:"has_column"`
	Positions []Position `json:"positions"`
}

// Empty reports a complete localization failure: no column and no heroes.
func (c ColumnLocalization) Empty() bool {
	return !c.HasColumn && len(c.Positions) == 0
}
