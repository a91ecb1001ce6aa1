// Package recognizer runs the hero recognition pipeline: column
// localization, candidate regions, embedding verification and fusion.
//
// A Recognizer is built once from an immutable reference library and serves
// concurrent requests. Each request carries a context that is threaded
// through every stage, so a timeout or a canceled Job stops in-flight
// inference instead of leaving it running.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/debugdump"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/embed"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/fusion"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/localize"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/metrics"
)

// Pipeline stage names used in logs and metrics.
const (
	StageLocalize = "localize"
	StageROI      = "roi"
	StageVerify   = "verify"
	StageFuse     = "fuse"
	StageDebug    = "debug"
)

// ColumnLocalizer finds heroes by template matching. *localize.Localizer
// implements it.
type ColumnLocalizer interface {
	Localize(ctx context.Context, img image.Image) (hero.ColumnLocalization, error)
}

// Stats are per-request verification counters.
type Stats struct {
	Embedded       int `json:"embedded"`
	Retries        int `json:"retries"`
	DroppedBatches int `json:"dropped_batches"`
}

// Report is the outcome of one recognition request.
type Report struct {
	ID           string                  `json:"id"`
	Result       hero.Result             `json:"result"`
	Localization hero.ColumnLocalization `json:"localization"`
	ROIs         int                     `json:"rois"`
	// Detections are the embedding matches above the logging threshold.
	Detections []hero.Detection `json:"detections"`
	Stats      Stats            `json:"stats"`
	Duration   time.Duration    `json:"duration"`
	// DebugPath is the session record written for this request, if any.
	DebugPath string `json:"debug_path,omitempty"`
}

// Recognizer is safe for concurrent use.
type Recognizer struct {
	lib       *reference.Library
	extractor features.Extractor
	localizer ColumnLocalizer
	rois      *roi.Generator
	verifier  *embed.Verifier
	fusion    *fusion.Engine
	dump      *debugdump.Writer
	settings  Settings
	log       logger.Logger
	metrics   *metrics.Manager
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger; stages log through named children of it.
func WithLogger(log logger.Logger) Option {
	return func(r *Recognizer) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics records to m instead of the global manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Recognizer) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLocalizer replaces the template localizer built from the library.
func WithLocalizer(l ColumnLocalizer) Option {
	return func(r *Recognizer) { r.localizer = l }
}

// New builds a Recognizer. It takes ownership of model: the model is closed
// by Close, or before New returns when New fails. On success the Recognizer
// also owns extractor when it is an io.Closer. The localizer is disabled
// when the library has no templates or extractor is nil.
func New(lib *reference.Library, extractor features.Extractor, model embed.Model, s Settings, opts ...Option) (*Recognizer, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", embed.ErrModelLoad)
	}
	if lib == nil || lib.Len() == 0 {
		_ = model.Close()
		return nil, ErrNoReferences
	}

	r := &Recognizer{
		lib:       lib,
		extractor: extractor,
		settings:  s,
		log:       logger.Named("recognizer"),
		metrics:   metrics.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if s.DebugDir != "" {
		dump, err := debugdump.New(s.DebugDir,
			debugdump.WithCrops(s.DebugSaveCrops),
			debugdump.WithLogger(r.log.Named("debugdump")))
		if err != nil {
			_ = model.Close()
			return nil, err
		}
		r.dump = dump
	}

	verifier, err := embed.NewVerifier(model, lib, s.Verify, embed.WithLogger(r.log.Named("embed")))
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}
	r.verifier = verifier
	r.rois = roi.New(s.ROI)
	r.fusion = fusion.New(s.Fusion, fusion.WithLogger(r.log.Named("fusion")))

	if r.localizer == nil && extractor != nil && len(lib.Templates()) > 0 {
		r.localizer = localize.New(extractor, lib.Templates(), s.Localize, localize.WithLogger(r.log.Named("localize")))
	}

	r.metrics.SetReferenceEntries(len(lib.Entries()))
	r.log.Info(context.Background(), "recognizer ready",
		logger.Int("heroes", lib.Len()),
		logger.Int("templates", len(lib.Templates())),
		logger.Any("localizer", r.localizer != nil),
		logger.Int("input_size", verifier.InputSize()))
	return r, nil
}

// Library returns the reference library.
func (r *Recognizer) Library() *reference.Library { return r.lib }

// Settings returns the settings the recognizer was built with.
func (r *Recognizer) Settings() Settings { return r.settings }

// Recognize runs one request synchronously with the request timeout applied.
func (r *Recognizer) Recognize(ctx context.Context, frame image.Image) (*Report, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.run(ctx, uuid.NewString(), frame)
}

// RecognizePixels runs one request on a raw RGBA buffer handed over by a
// screen capture, four bytes per pixel with no row padding. The buffer is
// not copied. A buffer that does not hold width x height pixels is a
// capture error.
func (r *Recognizer) RecognizePixels(ctx context.Context, width, height int, pix []byte) (*Report, error) {
	frame, err := imaging.FrameFromPixels(width, height, pix)
	if err != nil {
		return nil, r.fail(ctx, time.Now(), &RequestError{Kind: KindCapture, Err: fmt.Errorf("%w: %v", ErrNoFrame, err)})
	}
	return r.Recognize(ctx, frame)
}

func (r *Recognizer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.settings.RequestTimeout > 0 {
		return context.WithTimeout(ctx, r.settings.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Recognizer) run(ctx context.Context, id string, img image.Image) (*Report, error) {
	start := time.Now()
	log := r.log
	if img == nil || img.Bounds().Empty() {
		return nil, r.fail(ctx, start, &RequestError{Kind: KindCapture, Err: ErrNoFrame})
	}
	frame := imaging.ToRGBA(img)
	width, height := frame.Bounds().Dx(), frame.Bounds().Dy()
	rep := &Report{ID: id}

	stage := time.Now()
	loc, err := r.localize(ctx, frame)
	if err != nil {
		return nil, r.fail(ctx, start, err)
	}
	rep.Localization = loc
	r.metrics.RecordStage(StageLocalize, time.Since(stage))
	r.metrics.RecordLocalizerHits(len(loc.Positions))
	r.metrics.RecordDetections(hero.SourceLocalizer.String(), len(loc.Positions))

	stage = time.Now()
	regions := r.rois.Generate(loc, width, height)
	rep.ROIs = len(regions)
	r.metrics.RecordStage(StageROI, time.Since(stage))
	r.metrics.RecordROIs(len(regions))
	log.Debug(ctx, "candidate regions generated",
		logger.Int("rois", len(regions)),
		logger.Any("by_origin", debugdump.CountOrigins(regions)))

	stage = time.Now()
	vres, err := r.verifier.Verify(ctx, frame, regions)
	if err != nil {
		return nil, r.fail(ctx, start, err)
	}
	rep.Detections = vres.Detections
	rep.Stats = Stats{Embedded: vres.Embedded, Retries: vres.Retries, DroppedBatches: vres.DroppedBatches}
	r.metrics.RecordStage(StageVerify, time.Since(stage))
	r.metrics.RecordDetections(hero.SourceEmbedding.String(), len(vres.Detections))
	for i := 0; i < vres.Retries; i++ {
		r.metrics.RecordRetry()
	}
	for i := 0; i < vres.DroppedBatches; i++ {
		r.metrics.RecordDroppedBatch()
	}

	stage = time.Now()
	rep.Result = r.fusion.Fuse(ctx, loc.Positions, vres.Detections)
	r.metrics.RecordStage(StageFuse, time.Since(stage))
	rep.Duration = time.Since(start)

	if r.dump != nil {
		stage = time.Now()
		path, err := r.dump.Write(ctx, frame, r.session(rep, width, height, start), regions)
		if err != nil {
			log.Warn(ctx, "failed to write debug session", logger.Error(err))
		}
		rep.DebugPath = path
		r.metrics.RecordStage(StageDebug, time.Since(stage))
	}

	r.metrics.RecordRecognized(rep.Result.Len())
	r.metrics.RecordRequest(metrics.OutcomeOK, rep.Duration)
	log.Info(ctx, "recognition finished",
		logger.String("id", id),
		logger.Any("heroes", rep.Result.Names()),
		logger.Int("rois", rep.ROIs),
		logger.Int("detections", len(rep.Detections)),
		logger.Any("elapsed", rep.Duration))
	return rep, nil
}

// localize runs the column localizer. Extractor failures degrade to an empty
// localization; only cancellation aborts the request.
func (r *Recognizer) localize(ctx context.Context, frame image.Image) (hero.ColumnLocalization, error) {
	if r.localizer == nil {
		return hero.ColumnLocalization{}, ctx.Err()
	}
	loc, err := r.localizer.Localize(ctx, frame)
	if err == nil {
		return loc, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return hero.ColumnLocalization{}, ctxErr
	}
	r.log.Warn(ctx, "column localization failed, continuing without it", logger.Error(err))
	return hero.ColumnLocalization{}, nil
}

func (r *Recognizer) fail(ctx context.Context, start time.Time, err error) error {
	re := classify(err, KindInternal)
	elapsed := time.Since(start)
	r.metrics.RecordRequest(re.Kind.outcome(), elapsed)
	r.log.Warn(ctx, "recognition failed",
		logger.String("kind", re.Kind.String()),
		logger.Any("elapsed", elapsed),
		logger.Error(re.Err))
	return re
}

func (r *Recognizer) session(rep *Report, width, height int, start time.Time) debugdump.Session {
	s := r.settings
	return debugdump.Session{
		ID:          rep.ID,
		Timestamp:   start,
		FrameWidth:  width,
		FrameHeight: height,
		Thresholds: debugdump.Thresholds{
			Logging:       s.Verify.LoggingThreshold,
			Decision:      r.fusion.Options().DecisionThreshold,
			Confirmation:  r.fusion.Options().ConfirmationThreshold,
			YOverlapRatio: r.fusion.Options().YOverlapRatio,
			NMSIoU:        r.fusion.Options().NMSThreshold,
			Window:        r.rois.Window(),
		},
		Localization:   rep.Localization,
		Detections:     rep.Detections,
		FinalResult:    rep.Result.Entries,
		DroppedBatches: rep.Stats.DroppedBatches,
		DurationMillis: rep.Duration.Milliseconds(),
	}
}

// Annotate draws a report over its frame: column line, localizer hits and
// accepted entries.
func (r *Recognizer) Annotate(frame image.Image, rep *Report) *image.RGBA {
	b := frame.Bounds()
	return debugdump.Annotate(frame, r.session(rep, b.Dx(), b.Dy(), time.Now()))
}

// Localize runs only the column localizer. Without templates it returns an
// empty localization.
func (r *Recognizer) Localize(ctx context.Context, frame image.Image) (hero.ColumnLocalization, error) {
	if frame == nil || frame.Bounds().Empty() {
		return hero.ColumnLocalization{}, &RequestError{Kind: KindCapture, Err: ErrNoFrame}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if r.localizer == nil {
		return hero.ColumnLocalization{}, nil
	}
	loc, err := r.localizer.Localize(ctx, imaging.ToRGBA(frame))
	if err != nil {
		return hero.ColumnLocalization{}, classify(err, KindInternal)
	}
	return loc, nil
}

// MatchRegion returns the k best reference matches for one region of frame.
func (r *Recognizer) MatchRegion(ctx context.Context, frame image.Image, rect hero.Rect, k int) ([]reference.Match, error) {
	if frame == nil || frame.Bounds().Empty() {
		return nil, &RequestError{Kind: KindCapture, Err: ErrNoFrame}
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	matches, err := r.verifier.Describe(ctx, imaging.ToRGBA(frame), rect, k)
	if err != nil {
		return nil, classify(err, KindInternal)
	}
	return matches, nil
}

// Close releases the model handles and the extractor.
func (r *Recognizer) Close() error {
	errs := []error{r.verifier.Close()}
	if c, ok := r.extractor.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
