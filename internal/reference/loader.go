package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// LoadOptions locate the reference data on disk.
type LoadOptions struct {
	// EmbeddingsDir holds one .npy file per reference vector.
	EmbeddingsDir string
	// TemplatesDir holds hero icons for the localizer. Empty disables templates.
	TemplatesDir string
	// Extractor computes template features; required when TemplatesDir is set.
	Extractor features.Extractor
	Logger    logger.Logger
}

// Load reads embeddings and templates from disk. Hero identities come from
// file names through hero.CanonicalName, so "iron_man_2.npy" and
// "Iron Man.npy" share an entry. Unreadable or invalid files are skipped with
// a warning; a missing embeddings directory or zero usable vectors fail.
func Load(ctx context.Context, opts LoadOptions) (*Library, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Named("reference")
	}

	vectors, err := loadEmbeddings(ctx, opts.EmbeddingsDir, log)
	if err != nil {
		return nil, err
	}

	var templates []Template
	if opts.TemplatesDir != "" {
		if opts.Extractor == nil {
			return nil, errors.New("templates directory set without a feature extractor")
		}
		templates, err = loadTemplates(ctx, opts.TemplatesDir, opts.Extractor, log)
		if err != nil {
			return nil, err
		}
	}

	lib, err := New(vectors, WithLogger(log), WithTemplates(templates...))
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, opts.EmbeddingsDir)
	}
	log.Info(ctx, "reference library loaded",
		logger.Int("heroes", lib.Len()),
		logger.Int("dim", lib.Dim()),
		logger.Int("templates", len(templates)))
	return lib, nil
}

func loadEmbeddings(ctx context.Context, dir string, log logger.Logger) (map[string][][]float32, error) {
	files, err := listFiles(dir, ".npy")
	if err != nil {
		return nil, err
	}
	vectors := make(map[string][][]float32)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vs, err := ReadNPY(path)
		if err != nil {
			log.Warn(ctx, "skipping embedding file", logger.String("path", path), logger.Error(err))
			continue
		}
		name := hero.CanonicalName(stem(path))
		if name == "" {
			log.Warn(ctx, "skipping embedding file without a hero name", logger.String("path", path))
			continue
		}
		vectors[name] = append(vectors[name], vs...)
	}
	return vectors, nil
}

// ReadNPY reads a float32 or float64 array. A 1-D array is one vector; a
// 2-D array holds one vector per row.
func ReadNPY(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read npy header: %w", err)
	}

	shape := r.Header.Descr.Shape
	var rows, cols int
	switch len(shape) {
	case 1:
		rows, cols = 1, shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("unsupported npy shape %v", shape)
	}
	if r.Header.Descr.Fortran && rows > 1 {
		return nil, errors.New("fortran-ordered arrays are not supported")
	}

	var flat []float32
	switch r.Header.Descr.Type {
	case "<f4", "f4":
		if err := r.Read(&flat); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
	case "<f8", "f8":
		var wide []float64
		if err := r.Read(&wide); err != nil {
			return nil, fmt.Errorf("failed to read npy data: %w", err)
		}
		flat = make([]float32, len(wide))
		for i, v := range wide {
			flat[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", r.Header.Descr.Type)
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("npy holds %d values, shape %v", len(flat), shape)
	}

	out := make([][]float32, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out, nil
}

func loadTemplates(ctx context.Context, dir string, ex features.Extractor, log logger.Logger) ([]Template, error) {
	files, err := listFiles(dir, ".png", ".jpg", ".jpeg")
	if err != nil {
		return nil, err
	}
	var out []Template
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := imaging.Open(path)
		if err != nil {
			log.Warn(ctx, "skipping template", logger.String("path", path), logger.Error(err))
			continue
		}
		feats, err := ex.Extract(imaging.Prepare(img))
		if err != nil {
			log.Warn(ctx, "skipping template", logger.String("path", path), logger.Error(err))
			continue
		}
		if feats.Empty() {
			log.Warn(ctx, "template has no keypoints", logger.String("path", path))
			continue
		}
		out = append(out, Template{
			Name:     hero.CanonicalName(stem(path)),
			Source:   path,
			Width:    img.Bounds().Dx(),
			Height:   img.Bounds().Dy(),
			Features: feats,
		})
	}
	return out, nil
}

func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDirMissing, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
