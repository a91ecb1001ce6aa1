package imaging

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"
)

// DefaultCacheSize is the number of decoded images an ImageCache keeps.
const DefaultCacheSize = 8

// ImageCache keeps decoded screenshots keyed by path so that several tools
// run on the same capture decode it once.
//
// Every entry remembers the modification time and size of the file it was
// decoded from. Load stats the file on each call and decodes it again when
// either has changed, so a screenshot overwritten at a fixed path is never
// served stale.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// A decoded 1080p frame takes about 8 MB. The cache holds at most its
// capacity of images and drops the least recently loaded one when a new path
// arrives. Evict and Clear release entries explicitly.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	frame, err := cache.LoadFrame("/tmp/screen.png")
//	if err != nil {
//	    return err
//	}
//	// The next LoadFrame sees the new pixels once the file is replaced.
type ImageCache struct {
	mu       sync.Mutex
	capacity int
	images   map[string]*cacheEntry
	clock    uint64
}

type cacheEntry struct {
	img     image.Image
	modTime time.Time
	size    int64
	used    uint64
}

// NewImageCache creates an empty cache holding up to DefaultCacheSize images.
func NewImageCache() *ImageCache {
	return NewImageCacheSize(DefaultCacheSize)
}

// NewImageCacheSize creates an empty cache holding up to capacity images.
// A non-positive capacity takes DefaultCacheSize.
func NewImageCacheSize(capacity int) *ImageCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &ImageCache{
		capacity: capacity,
		images:   make(map[string]*cacheEntry),
	}
}

// Load returns the decoded image at path, reusing the cached copy while the
// file is unchanged.
//
// Parameters:
//   - path: File path of the image. Supported formats are PNG, JPEG and GIF.
//
// Returns:
//   - image.Image: The decoded image. The concrete type depends on the file
//     format and color model.
//   - error: Non-nil if the file cannot be stat'ed, opened or decoded.
//
// The cache key is the exact path string. A cached image is reused only when
// the file's modification time and size both match the values recorded when
// it was decoded.
//
// # Errors
//
//   - Returns error if the file does not exist or cannot be read
//   - Returns error if the file is not a valid PNG, JPEG or GIF image
func (c *ImageCache) Load(path string) (image.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.Evict(path)
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.Lock()
	if e, ok := c.images[path]; ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		c.clock++
		e.used = c.clock
		c.mu.Unlock()
		return e.img, nil
	}
	c.mu.Unlock()

	img, err := Open(path)
	if err != nil {
		c.Evict(path)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[path]; !ok && len(c.images) >= c.capacity {
		c.evictOldest()
	}
	c.clock++
	c.images[path] = &cacheEntry{img: img, modTime: info.ModTime(), size: info.Size(), used: c.clock}
	return img, nil
}

// evictOldest drops the least recently loaded entry. Callers hold mu.
func (c *ImageCache) evictOldest() {
	var oldest string
	var used uint64
	for path, e := range c.images {
		if oldest == "" || e.used < used {
			oldest, used = path, e.used
		}
	}
	delete(c.images, oldest)
}

// LoadFrame returns the image at path as an RGBA frame anchored at (0,0).
//
// Parameters:
//   - path: File path of the screenshot.
//
// Returns:
//   - *image.RGBA: The frame. It is shared with the cache when the decoded
//     image is already RGBA, so callers must not modify it.
//   - error: Non-nil under the same conditions as Load.
func (c *ImageCache) LoadFrame(path string) (*image.RGBA, error) {
	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Evict removes the image loaded from path, if any.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Open decodes the image file at path without caching it.
//
// Parameters:
//   - path: File path of a PNG, JPEG or GIF image.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: Wraps the open or decode failure.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ToRGBA returns img as an *image.RGBA anchored at (0,0), copying only when needed.
//
// Frames whose bounds do not start at the origin are rebased, so every
// rectangle computed downstream uses (0,0) as the top-left pixel.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// FrameFromPixels wraps a raw RGBA buffer handed over by a screen capture
// without copying it.
//
// Parameters:
//   - width, height: Frame size in pixels. Both must be positive.
//   - pix: Row-major RGBA bytes, four per pixel, with no row padding.
//
// Returns:
//   - *image.RGBA: A frame whose Pix aliases pix.
//   - error: Non-nil when the size is not positive or the buffer length is
//     not exactly width*height*4.
func FrameFromPixels(width, height int, pix []byte) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("frame buffer holds %d bytes, want %d for %dx%d", len(pix), width*height*4, width, height)
	}
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of the image at path.
//
// The image is loaded through cache, so a later recognition tool on the same
// unchanged file reuses the decoded pixels.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
