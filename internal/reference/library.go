// Package reference holds the per-hero reference data: L2-normalized
// embedding vectors and template keypoint features. A Library is built once
// and is read-only afterwards, so it is shared across workers without locks.
package reference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

var (
	// ErrDirMissing is returned when the embeddings directory does not exist.
	ErrDirMissing = errors.New("reference directory missing")
	// ErrNoReferences is returned when no usable embedding was found.
	ErrNoReferences = errors.New("no usable reference embeddings")
)

// Match is one reference hit for a query embedding.
type Match struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Template is one hero icon prepared for keypoint matching.
type Template struct {
	Name     string
	Source   string
	Width    int
	Height   int
	Features features.Features
}

// EntryInfo summarizes one hero identity.
type EntryInfo struct {
	Name      string `json:"name"`
	Vectors   int    `json:"vectors"`
	Templates int    `json:"templates"`
}

// Library maps canonical hero names to reference vectors and templates.
type Library struct {
	names     []string
	vectors   map[string][][]float64
	templates []Template
	dim       int
	log       logger.Logger
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger used for skipped entries.
func WithLogger(log logger.Logger) Option {
	return func(l *Library) {
		if log != nil {
			l.log = log
		}
	}
}

// WithTemplates attaches template features for the column localizer.
func WithTemplates(tpls ...Template) Option {
	return func(l *Library) {
		l.templates = append(l.templates, tpls...)
	}
}

// New builds a library from in-memory vectors keyed by hero name. Vectors
// with NaN or Inf values, a zero norm or a dimension different from the
// first accepted vector are skipped with a warning.
func New(vectors map[string][][]float32, opts ...Option) (*Library, error) {
	l := &Library{
		vectors: make(map[string][][]float64),
		log:     logger.Named("reference"),
	}
	for _, opt := range opts {
		opt(l)
	}

	names := make([]string, 0, len(vectors))
	for name := range vectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for i, v := range vectors[name] {
			if err := l.add(name, toFloat64(v)); err != nil {
				l.log.Warn(context.Background(), "skipping reference vector",
					logger.String("hero", name), logger.Int("index", i), logger.Error(err))
			}
		}
	}
	return l.finish()
}

func (l *Library) add(name string, v []float64) error {
	if len(v) == 0 {
		return errors.New("empty vector")
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.New("vector contains NaN or Inf")
		}
	}
	if l.dim != 0 && len(v) != l.dim {
		return fmt.Errorf("dimension %d, want %d", len(v), l.dim)
	}
	norm := floats.Norm(v, 2)
	if norm == 0 {
		return errors.New("zero vector")
	}
	floats.Scale(1/norm, v)
	l.dim = len(v)
	l.vectors[name] = append(l.vectors[name], v)
	return nil
}

func (l *Library) finish() (*Library, error) {
	if len(l.vectors) == 0 {
		return nil, ErrNoReferences
	}
	l.names = l.names[:0]
	for name := range l.vectors {
		l.names = append(l.names, name)
	}
	sort.Strings(l.names)
	sort.SliceStable(l.templates, func(i, j int) bool { return l.templates[i].Name < l.templates[j].Name })
	return l, nil
}

// BestMatch returns the hero whose reference vectors are most cosine-similar
// to query, when that similarity is at least minScore. A hero with several
// vectors scores its best one. Ties go to the alphabetically first name.
func (l *Library) BestMatch(query []float32, minScore float64) (Match, bool) {
	q, ok := l.normalizeQuery(query)
	if !ok {
		return Match{}, false
	}
	best := Match{Score: math.Inf(-1)}
	for _, name := range l.names {
		if s := l.score(name, q); s > best.Score {
			best = Match{Name: name, Score: s}
		}
	}
	if best.Name == "" || best.Score < minScore {
		return Match{}, false
	}
	return best, true
}

// TopK returns the k best heroes for query, highest score first.
func (l *Library) TopK(query []float32, k int) []Match {
	q, ok := l.normalizeQuery(query)
	if !ok || k <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(l.names))
	for _, name := range l.names {
		matches = append(matches, Match{Name: name, Score: l.score(name, q)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func (l *Library) score(name string, q []float64) float64 {
	best := math.Inf(-1)
	for _, v := range l.vectors[name] {
		best = math.Max(best, floats.Dot(q, v))
	}
	return math.Max(-1, math.Min(1, best))
}

func (l *Library) normalizeQuery(query []float32) ([]float64, bool) {
	if len(query) != l.dim {
		return nil, false
	}
	q := toFloat64(query)
	norm := floats.Norm(q, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	floats.Scale(1/norm, q)
	return q, true
}

// Names returns the hero identities in alphabetical order.
func (l *Library) Names() []string {
	return append([]string(nil), l.names...)
}

// Len returns the number of hero identities.
func (l *Library) Len() int { return len(l.names) }

// Dim returns the embedding dimension.
func (l *Library) Dim() int { return l.dim }

// Templates returns the localizer templates ordered by hero name.
func (l *Library) Templates() []Template { return l.templates }

// Entries summarizes every identity known to the library, including heroes
// that only have templates.
func (l *Library) Entries() []EntryInfo {
	byName := make(map[string]*EntryInfo)
	get := func(name string) *EntryInfo {
		e, ok := byName[name]
		if !ok {
			e = &EntryInfo{Name: name}
			byName[name] = e
		}
		return e
	}
	for name, vs := range l.vectors {
		get(name).Vectors = len(vs)
	}
	for _, t := range l.templates {
		get(t.Name).Templates++
	}

	out := make([]EntryInfo, 0, len(byName))
	for _, e := range byName {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
