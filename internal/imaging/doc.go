// Package imaging provides the pixel-level operations of the recognition pipeline.
//
// It covers image loading and caching, conversion of captured frames to RGBA,
// grayscale conversion with histogram equalization for keypoint detection,
// ROI cropping and letterboxing for the embedding model, crop enhancement,
// and debug overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner.
// For regions, Min is inclusive and Max is exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The other functions are stateless and
// never modify their inputs, so they may run concurrently on a shared frame.
package imaging
