// Package hero holds the data model shared by every recognition stage.
//
// Rectangles use source-image pixel coordinates with (0,0) at the top-left
// corner, X growing rightward and Y growing downward. A Rect covers
// [X, X+Width) horizontally and [Y, Y+Height) vertically.
//
// Both detectors produce values of this package: the column localizer emits
// Position values and the embedding verifier emits Detection values. Every
// Detection carries its evidence Source so that fusion can treat the two
// detectors declaratively.
package hero
