package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createTestImage creates a simple test image file and returns its path.
// The caller is responsible for removing the file.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	tmpFile, err := os.CreateTemp("", "test-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer tmpFile.Close()

	if err := png.Encode(tmpFile, img); err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to encode image: %v", err)
	}

	return tmpFile.Name()
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.images == nil {
		t.Fatal("NewImageCache did not initialize images map")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})
	defer os.Remove(imgPath)

	// First load
	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if img1 == nil {
		t.Fatal("Load returned nil image")
	}

	bounds := img1.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", bounds.Dx(), bounds.Dy())
	}

	// Second load should return cached image
	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load("/nonexistent/path/to/image.png")
	if err == nil {
		t.Error("Load should fail for non-existent file")
	}
}

func TestImageCache_Load_InvalidImage(t *testing.T) {
	cache := NewImageCache()

	// Create a file with invalid image data
	tmpFile, err := os.CreateTemp("", "invalid-image-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.WriteString("not an image")
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	_, err = cache.Load(tmpFile.Name())
	if err == nil {
		t.Error("Load should fail for invalid image data")
	}
}

func TestImageCache_Clear(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 255, 0, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Clear cache
	cache.Clear()

	// Verify cache is empty by checking internal state
	cache.mu.Lock()
	count := len(cache.images)
	cache.mu.Unlock()

	if count != 0 {
		t.Errorf("Clear did not empty cache: %d images remain", count)
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{0, 0, 255, 255})
	defer os.Remove(imgPath)

	// Load image
	_, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Evict
	cache.Evict(imgPath)

	// Verify image is evicted
	cache.mu.Lock()
	_, exists := cache.images[imgPath]
	cache.mu.Unlock()

	if exists {
		t.Error("Evict did not remove image from cache")
	}
}

// writeSolidPNG writes a width x height PNG filled with c to path.
func writeSolidPNG(t *testing.T, path string, width, height int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
}

func TestImageCache_ReloadsReplacedFile(t *testing.T) {
	cache := NewImageCache()
	path := filepath.Join(t.TempDir(), "screen.png")
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}

	writeSolidPNG(t, path, 40, 40, red)
	first, err := cache.LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if got := first.RGBAAt(5, 5); got != red {
		t.Fatalf("first frame pixel = %v, want %v", got, red)
	}

	// Overwrite at the same path. Same size PNGs may encode to the same
	// length, so push the mtime forward to make the change observable.
	writeSolidPNG(t, path, 40, 40, blue)
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	second, err := cache.LoadFrame(path)
	if err != nil {
		t.Fatalf("LoadFrame after overwrite failed: %v", err)
	}
	if got := second.RGBAAt(5, 5); got != blue {
		t.Errorf("frame after overwrite pixel = %v, want %v", got, blue)
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", cache.Len())
	}
}

func TestImageCache_DropsRemovedFile(t *testing.T) {
	cache := NewImageCache()
	path := filepath.Join(t.TempDir(), "screen.png")
	writeSolidPNG(t, path, 10, 10, color.RGBA{0, 255, 0, 255})

	if _, err := cache.Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := cache.Load(path); err == nil {
		t.Error("Load should fail once the file is gone")
	}
	if cache.Len() != 0 {
		t.Errorf("cache holds %d entries after the file was removed, want 0", cache.Len())
	}
}

func TestImageCache_Capacity(t *testing.T) {
	cache := NewImageCacheSize(2)
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("shot-%d.png", i))
		writeSolidPNG(t, paths[i], 8, 8, color.RGBA{uint8(i * 50), 0, 0, 255})
	}

	for _, p := range paths[:2] {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s) failed: %v", p, err)
		}
	}
	// Touch the first entry so the second becomes the oldest.
	if _, err := cache.Load(paths[0]); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := cache.Load(paths[2]); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cache.Len() != 2 {
		t.Fatalf("cache holds %d entries, want 2", cache.Len())
	}
	cache.mu.Lock()
	_, kept := cache.images[paths[0]]
	_, dropped := cache.images[paths[1]]
	cache.mu.Unlock()
	if !kept || dropped {
		t.Errorf("least recently loaded entry not evicted: kept first=%v, second present=%v", kept, dropped)
	}
}

func TestNewImageCacheSize_DefaultsCapacity(t *testing.T) {
	if got := NewImageCacheSize(0).capacity; got != DefaultCacheSize {
		t.Errorf("capacity = %d, want %d", got, DefaultCacheSize)
	}
}

func TestImageCache_Evict_NonExistent(t *testing.T) {
	cache := NewImageCache()
	// Should not panic
	cache.Evict("/nonexistent/path")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})
	defer os.Remove(imgPath)

	var wg sync.WaitGroup
	errors := make(chan error, 100)

	// Concurrent loads
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Load(imgPath)
			if err != nil {
				errors <- err
			}
		}()
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 300, 200, color.RGBA{100, 100, 100, 255})
	defer os.Remove(imgPath)

	dims, err := GetDimensions(cache, imgPath)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}

	if dims.Width != 300 {
		t.Errorf("Width: got %d, want 300", dims.Width)
	}
	if dims.Height != 200 {
		t.Errorf("Height: got %d, want 200", dims.Height)
	}
}

func TestGetDimensions_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := GetDimensions(cache, "/nonexistent/image.png")
	if err == nil {
		t.Error("GetDimensions should fail for non-existent file")
	}
}

func TestImageCache_LoadFrame(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 40, 30, color.RGBA{10, 20, 30, 255})
	defer os.Remove(imgPath)

	frame, err := cache.LoadFrame(imgPath)
	if err != nil {
		t.Fatalf("LoadFrame failed: %v", err)
	}
	if frame.Rect != image.Rect(0, 0, 40, 30) {
		t.Errorf("frame rect: got %v, want (0,0)-(40,30)", frame.Rect)
	}
	if got := frame.RGBAAt(5, 5); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel: got %v, want {10 20 30 255}", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len: got %d, want 1", cache.Len())
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.png"))
	if err == nil {
		t.Error("Open should fail for a missing file")
	}
}

func TestToRGBA(t *testing.T) {
	src := createPatternImage(20, 20)
	if ToRGBA(src) != src {
		t.Error("ToRGBA should return an anchored RGBA image as is")
	}

	sub := src.SubImage(image.Rect(10, 10, 20, 20))
	got := ToRGBA(sub)
	if got.Rect != image.Rect(0, 0, 10, 10) {
		t.Fatalf("rect: got %v, want (0,0)-(10,10)", got.Rect)
	}
	if c := got.RGBAAt(0, 0); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel: got %v, want white from the bottom-right quadrant", c)
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.Pix[0] = 200
	if c := ToRGBA(gray).RGBAAt(0, 0); c != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("gray pixel: got %v", c)
	}
}

func TestFrameFromPixels(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		pixLen        int
		wantErr       bool
	}{
		{"valid", 4, 3, 48, false},
		{"short buffer", 4, 3, 47, true},
		{"zero width", 0, 3, 0, true},
		{"negative height", 4, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := FrameFromPixels(tt.width, tt.height, make([]byte, tt.pixLen))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && frame.Bounds().Dx() != tt.width {
				t.Errorf("width: got %d, want %d", frame.Bounds().Dx(), tt.width)
			}
		})
	}
}
