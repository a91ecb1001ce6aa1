// Package localize finds hero icons in a screenshot by keypoint matching
// and estimates the horizontal center of the hero column.
//
// A Localizer holds no per-request state. A frame with no keypoints or no
// matched heroes yields an empty ColumnLocalization, which callers treat as
// "scan the whole frame" rather than as an error.
package localize

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// Options tune hero acceptance and column estimation.
type Options struct {
	// MinMatchCount is the number of ratio-test matches a hero needs.
	MinMatchCount int
	// LoweRatio is the maximum best/second-best distance ratio.
	LoweRatio float64
	// MinHeroesForColumn is the number of detected heroes needed to
	// estimate the column center.
	MinHeroesForColumn int
	// BucketPx is the histogram bucket width for the column center.
	BucketPx int
}

// DefaultOptions returns the acceptance settings used in production.
func DefaultOptions() Options {
	return Options{MinMatchCount: 4, LoweRatio: 0.75, MinHeroesForColumn: 1, BucketPx: 10}
}

// Localizer matches hero templates against screenshots.
type Localizer struct {
	extractor features.Extractor
	heroes    []heroTemplates
	opts      Options
	log       logger.Logger
}

type heroTemplates struct {
	name      string
	templates []features.Features
}

// Option configures a Localizer.
type Option func(*Localizer)

// WithLogger sets the localizer logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Localizer) {
		if log != nil {
			l.log = log
		}
	}
}

// New returns a Localizer for the given templates. The extractor must be the
// one that produced the template features so descriptors are comparable.
func New(extractor features.Extractor, templates []reference.Template, opts Options, options ...Option) *Localizer {
	def := DefaultOptions()
	if opts.MinMatchCount <= 0 {
		opts.MinMatchCount = def.MinMatchCount
	}
	if opts.LoweRatio <= 0 {
		opts.LoweRatio = def.LoweRatio
	}
	if opts.MinHeroesForColumn <= 0 {
		opts.MinHeroesForColumn = def.MinHeroesForColumn
	}
	if opts.BucketPx <= 0 {
		opts.BucketPx = def.BucketPx
	}

	l := &Localizer{
		extractor: extractor,
		opts:      opts,
		log:       logger.Named("localize"),
	}
	for _, opt := range options {
		opt(l)
	}

	byName := make(map[string]int)
	for _, t := range templates {
		if t.Features.Empty() {
			continue
		}
		i, ok := byName[t.Name]
		if !ok {
			i = len(l.heroes)
			byName[t.Name] = i
			l.heroes = append(l.heroes, heroTemplates{name: t.Name})
		}
		l.heroes[i].templates = append(l.heroes[i].templates, t.Features)
	}
	sort.Slice(l.heroes, func(i, j int) bool { return l.heroes[i].name < l.heroes[j].name })
	return l
}

// Heroes returns the number of heroes with usable templates.
func (l *Localizer) Heroes() int { return len(l.heroes) }

// Localize returns the detected hero positions, strongest first, and the
// column center when enough heroes were found. Only extractor failures and
// context cancellation are errors.
func (l *Localizer) Localize(ctx context.Context, img image.Image) (hero.ColumnLocalization, error) {
	start := time.Now()
	var out hero.ColumnLocalization

	if len(l.heroes) == 0 {
		l.log.Warn(ctx, "no hero templates loaded")
		return out, nil
	}

	screen, err := l.extractor.Extract(imaging.Prepare(img))
	if err != nil {
		return out, fmt.Errorf("failed to extract screenshot features: %w", err)
	}
	if screen.Len() < 2 {
		l.log.Warn(ctx, "too few keypoints in screenshot", logger.Int("keypoints", screen.Len()))
		return out, nil
	}

	for _, h := range l.heroes {
		if err := ctx.Err(); err != nil {
			return hero.ColumnLocalization{}, err
		}
		pos, ok := l.matchHero(h, screen)
		l.log.Debug(ctx, "hero template matched",
			logger.String("hero", h.name),
			logger.Int("matches", pos.MatchCount),
			logger.Any("accepted", ok))
		if ok {
			out.Positions = append(out.Positions, pos)
		}
	}

	sort.SliceStable(out.Positions, func(i, j int) bool {
		a, b := out.Positions[i], out.Positions[j]
		if a.MatchCount != b.MatchCount {
			return a.MatchCount > b.MatchCount
		}
		return a.Name < b.Name
	})

	if len(out.Positions) >= l.opts.MinHeroesForColumn {
		out.ColumnX = ColumnCenter(out.Positions, l.opts.BucketPx)
		out.HasColumn = true
	}

	if out.Empty() {
		l.log.Warn(ctx, "no heroes localized", logger.Int("keypoints", screen.Len()))
	}
	l.log.Info(ctx, "column localization finished",
		logger.Int("keypoints", screen.Len()),
		logger.Int("heroes", len(out.Positions)),
		logger.Int("column_x", out.ColumnX),
		logger.Any("has_column", out.HasColumn),
		logger.Any("elapsed", time.Since(start)))
	return out, nil
}

// matchHero picks the hero's template with the most accepted matches and
// places the hero at the centroid of the matched screenshot keypoints.
func (l *Localizer) matchHero(h heroTemplates, screen features.Features) (hero.Position, bool) {
	var best []features.Match
	for _, tpl := range h.templates {
		m := features.MatchRatio(tpl.Descriptors, screen.Descriptors, l.opts.LoweRatio)
		if len(m) > len(best) {
			best = m
		}
	}

	pos := hero.Position{Name: h.name, MatchCount: len(best)}
	if len(best) < l.opts.MinMatchCount {
		return pos, false
	}

	var sx, sy float64
	for _, m := range best {
		kp := screen.KeyPoints[m.Train]
		sx += float64(kp.X)
		sy += float64(kp.Y)
	}
	n := float64(len(best))
	pos.X = int(math.Round(sx / n))
	pos.Y = int(math.Round(sy / n))
	return pos, true
}

// ColumnCenter returns the most common hero X after rounding to the nearest
// multiple of bucket. Ties go to the smaller X.
func ColumnCenter(positions []hero.Position, bucket int) int {
	if bucket <= 0 {
		bucket = 1
	}
	counts := make(map[int]int)
	for _, p := range positions {
		x := int(math.Round(float64(p.X)/float64(bucket))) * bucket
		counts[x]++
	}

	center, best := 0, 0
	for x, n := range counts {
		if n > best || (n == best && x < center) {
			center, best = x, n
		}
	}
	return center
}
