package opencv

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/embed"
)

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.onnx"), 224, "")
	if !errors.Is(err, embed.ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}
