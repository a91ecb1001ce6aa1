// Package fusion reconciles localizer hits and embedding detections into the
// final hero list.
//
// Fusion is a single deterministic pass:
//
//  1. Localizer hits seed the result in localizer order. A hit is confirmed
//     by the best same-name detection at or above the confirmation threshold
//     and is accepted unconfirmed otherwise.
//  2. Detections are reduced by same-name non-maximum suppression and then
//     to the best detection per name.
//  3. Remaining slots are filled by confidence, admitting only detections at
//     or above the decision threshold whose name is new and whose row is free.
//  4. The result is sorted top to bottom.
//
// Two entries with different names never share a row: their vertical overlap
// divided by the row height stays below the overlap ratio.
package fusion

import (
	"context"
	"sort"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// Options are the fusion thresholds.
type Options struct {
	DecisionThreshold     float64
	ConfirmationThreshold float64
	// YOverlapRatio is the share of RowHeight two entries may overlap vertically.
	YOverlapRatio float64
	// NMSThreshold is the IoU above which same-name detections are suppressed.
	NMSThreshold float64
	// RowHeight is the expected height of one hero row in pixels.
	RowHeight int
	// Slots caps the result size.
	Slots int
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		DecisionThreshold:     0.65,
		ConfirmationThreshold: 0.40,
		YOverlapRatio:         0.5,
		NMSThreshold:          0.4,
		RowHeight:             93,
		Slots:                 hero.MaxSlots,
	}
}

// Engine fuses detector outputs. It holds no per-request state.
type Engine struct {
	opts Options
	log  logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New returns an Engine. Slots is clamped to [1, hero.MaxSlots] and a
// non-positive row height takes the default.
func New(opts Options, options ...Option) *Engine {
	if opts.Slots <= 0 || opts.Slots > hero.MaxSlots {
		opts.Slots = hero.MaxSlots
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultOptions().RowHeight
	}
	e := &Engine{opts: opts, log: logger.Named("fusion")}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Options returns the engine thresholds.
func (e *Engine) Options() Options { return e.opts }

// Fuse returns at most Slots distinct heroes ordered top to bottom. Only
// detections whose Source is SourceEmbedding confirm hits or fill slots;
// localizer evidence enters through hits alone.
func (e *Engine) Fuse(ctx context.Context, hits []hero.Position, detections []hero.Detection) hero.Result {
	detections = FromSource(detections, hero.SourceEmbedding)
	var entries []hero.Entry
	taken := make(map[string]bool)

	for _, p := range hits {
		if len(entries) >= e.opts.Slots {
			break
		}
		if taken[p.Name] {
			continue
		}
		entry := hero.Entry{
			Name:       p.Name,
			Provenance: hero.LocalizerOnly,
			MatchCount: p.MatchCount,
			Rect:       p.Rect(e.opts.RowHeight),
		}
		if d, ok := bestFor(p.Name, detections, e.opts.ConfirmationThreshold); ok {
			entry.Provenance = hero.LocalizerConfirmed
			entry.Confidence = d.Confidence
			entry.Rect = d.Rect
		}
		if other, clash := e.rowTaken(entry.Rect, entries); clash {
			e.log.Debug(ctx, "localizer hit skipped, row taken",
				logger.String("hero", p.Name), logger.String("row_owner", other))
			continue
		}
		e.log.Debug(ctx, "localizer hit accepted",
			logger.String("hero", p.Name),
			logger.String("provenance", entry.Provenance.String()),
			logger.Float64("confidence", entry.Confidence))
		entries = append(entries, entry)
		taken[p.Name] = true
	}

	candidates := BestPerName(Suppress(detections, e.opts.NMSThreshold))
	for _, d := range candidates {
		if len(entries) >= e.opts.Slots {
			break
		}
		if d.Confidence < e.opts.DecisionThreshold || taken[d.Name] {
			continue
		}
		if other, clash := e.rowTaken(d.Rect, entries); clash {
			e.log.Debug(ctx, "detection rejected, row taken",
				logger.String("hero", d.Name),
				logger.Float64("confidence", d.Confidence),
				logger.String("row_owner", other))
			continue
		}
		entries = append(entries, hero.Entry{
			Name:       d.Name,
			Provenance: hero.EmbeddingOnly,
			Confidence: d.Confidence,
			Rect:       d.Rect,
		})
		taken[d.Name] = true
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Rect, entries[j].Rect
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return entries[i].Name < entries[j].Name
	})

	e.log.Info(ctx, "fusion finished",
		logger.Int("localizer_hits", len(hits)),
		logger.Int("detections", len(detections)),
		logger.Int("candidates", len(candidates)),
		logger.Int("accepted", len(entries)))
	return hero.Result{Entries: entries}
}

// rowTaken reports the first accepted entry whose vertical overlap with r
// reaches the overlap ratio.
func (e *Engine) rowTaken(r hero.Rect, entries []hero.Entry) (string, bool) {
	for _, a := range entries {
		overlap := float64(r.VerticalOverlap(a.Rect)) / float64(e.opts.RowHeight)
		if overlap >= e.opts.YOverlapRatio {
			return a.Name, true
		}
	}
	return "", false
}

// bestFor returns the highest-confidence detection of name at or above threshold.
func bestFor(name string, detections []hero.Detection, threshold float64) (hero.Detection, bool) {
	var best hero.Detection
	found := false
	for _, d := range detections {
		if d.Name != name || d.Confidence < threshold {
			continue
		}
		if !found || before(d, best) {
			best, found = d, true
		}
	}
	return best, found
}

// before orders detections by confidence descending, then name, then
// position, so every sort in this package is total.
func before(a, b hero.Detection) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if a.Rect.Y != b.Rect.Y {
		return a.Rect.Y < b.Rect.Y
	}
	return a.Rect.X < b.Rect.X
}

// FromSource returns the detections produced by src, in their input order.
func FromSource(detections []hero.Detection, src hero.Source) []hero.Detection {
	var out []hero.Detection
	for _, d := range detections {
		if d.Source == src {
			out = append(out, d)
		}
	}
	return out
}

// Sorted returns a copy of detections in fusion order.
func Sorted(detections []hero.Detection) []hero.Detection {
	out := append([]hero.Detection(nil), detections...)
	sort.SliceStable(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// Suppress applies same-name non-maximum suppression: a detection is dropped
// when a stronger detection of the same hero overlaps it with IoU above
// threshold. The survivors are returned in fusion order.
func Suppress(detections []hero.Detection, threshold float64) []hero.Detection {
	var kept []hero.Detection
	for _, d := range Sorted(detections) {
		suppressed := false
		for _, k := range kept {
			if k.Name == d.Name && k.Rect.IoU(d.Rect) > threshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// BestPerName keeps the strongest detection of every hero, in fusion order.
func BestPerName(detections []hero.Detection) []hero.Detection {
	seen := make(map[string]bool)
	var out []hero.Detection
	for _, d := range Sorted(detections) {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d)
	}
	return out
}
