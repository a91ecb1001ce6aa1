package embed

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// Matcher scores embeddings against reference vectors. *reference.Library
// implements it.
type Matcher interface {
	BestMatch(query []float32, minScore float64) (reference.Match, bool)
	TopK(query []float32, k int) []reference.Match
}

// Options control batching and acceptance.
type Options struct {
	// BatchSize is the number of regions per model call.
	BatchSize int
	// Workers bounds the number of concurrent batches.
	Workers int
	// Retries is the number of extra attempts for a failing batch.
	Retries int
	// LoggingThreshold is the minimum similarity for a Detection.
	LoggingThreshold float64
	// Enhance sharpens and brightens crops before inference.
	Enhance bool
}

// DefaultOptions returns the verifier settings used in production.
func DefaultOptions() Options {
	return Options{BatchSize: 32, Workers: 2, Retries: 1, LoggingThreshold: 0.10, Enhance: true}
}

// Result is the output of one verification pass.
type Result struct {
	// Detections are in region order.
	Detections []hero.Detection
	// Embedded counts regions that produced a vector.
	Embedded int
	// Retries counts repeated batch attempts.
	Retries int
	// DroppedBatches counts batches abandoned after their retries.
	DroppedBatches int
}

// Verifier embeds candidate regions and matches them against a Matcher.
// It is safe for concurrent use.
type Verifier struct {
	ref     Matcher
	opts    Options
	size    int
	handles []Model
	pool    chan Model
	log     logger.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the verifier logger.
func WithLogger(log logger.Logger) Option {
	return func(v *Verifier) {
		if log != nil {
			v.log = log
		}
	}
}

// NewVerifier takes ownership of model, also when it fails. When model
// implements Cloner every worker gets its own handle; otherwise the single
// handle is shared and model calls are serialized.
func NewVerifier(model Model, ref Matcher, opts Options, options ...Option) (*Verifier, error) {
	if model == nil {
		return nil, errors.New("verifier needs a model")
	}
	if ref == nil {
		_ = model.Close()
		return nil, errors.New("verifier needs a matcher")
	}
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	v := &Verifier{
		ref:     ref,
		opts:    opts,
		size:    model.InputSize(),
		handles: []Model{model},
		log:     logger.Named("embed"),
	}
	for _, opt := range options {
		opt(v)
	}
	if v.size <= 0 {
		_ = v.Close()
		return nil, fmt.Errorf("model input size %d", v.size)
	}

	if c, ok := model.(Cloner); ok {
		for len(v.handles) < opts.Workers {
			clone, err := c.Clone()
			if err != nil {
				_ = v.Close()
				return nil, fmt.Errorf("failed to clone model: %w", err)
			}
			v.handles = append(v.handles, clone)
		}
	}
	v.pool = make(chan Model, len(v.handles))
	for _, h := range v.handles {
		v.pool <- h
	}
	return v, nil
}

// InputSize returns the model input side.
func (v *Verifier) InputSize() int { return v.size }

// Verify embeds every region and returns a Detection for each one whose best
// reference match reaches the logging threshold. Batch failures are dropped
// after their retries; only context cancellation is returned as an error.
func (v *Verifier) Verify(ctx context.Context, frame image.Image, regions []roi.Region) (Result, error) {
	start := time.Now()
	batches := split(regions, v.opts.BatchSize)
	outs := make([]batchOutput, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Workers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			out, err := v.runBatch(gctx, frame, batch)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for _, out := range outs {
		res.Detections = append(res.Detections, out.detections...)
		res.Embedded += out.embedded
		res.Retries += out.retries
		if out.dropped {
			res.DroppedBatches++
		}
	}

	if len(res.Detections) == 0 {
		v.log.Warn(ctx, "no detections above logging threshold", logger.Int("regions", len(regions)))
	}
	v.log.Info(ctx, "embedding verification finished",
		logger.Int("regions", len(regions)),
		logger.Int("batches", len(batches)),
		logger.Int("detections", len(res.Detections)),
		logger.Int("dropped_batches", res.DroppedBatches),
		logger.Any("elapsed", time.Since(start)))
	return res, nil
}

type batchOutput struct {
	detections []hero.Detection
	embedded   int
	retries    int
	dropped    bool
}

func (v *Verifier) runBatch(ctx context.Context, frame image.Image, batch []roi.Region) (batchOutput, error) {
	var out batchOutput

	tensor, kept := v.tensor(ctx, frame, batch)
	if len(kept) == 0 {
		return out, ctx.Err()
	}

	embs, retries, err := v.embed(ctx, tensor)
	out.retries = retries
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		v.log.Warn(ctx, "dropping inference batch", logger.Int("regions", len(kept)), logger.Error(err))
		out.dropped = true
		return out, nil
	}

	for i, e := range embs {
		Normalize(e)
		out.embedded++
		m, ok := v.ref.BestMatch(e, v.opts.LoggingThreshold)
		if !ok {
			continue
		}
		d := hero.Detection{
			Name:       m.Name,
			Confidence: min(1, max(0, m.Score)),
			Rect:       kept[i].Rect,
			Source:     hero.SourceEmbedding,
		}
		v.log.Debug(ctx, "region matched",
			logger.String("hero", d.Name),
			logger.Float64("confidence", d.Confidence),
			logger.Int("x", d.Rect.X),
			logger.Int("y", d.Rect.Y))
		out.detections = append(out.detections, d)
	}
	return out, nil
}

// tensor preprocesses the batch; regions that cannot be cropped are skipped.
func (v *Verifier) tensor(ctx context.Context, frame image.Image, batch []roi.Region) (*Tensor, []roi.Region) {
	kept := make([]roi.Region, 0, len(batch))
	tensor := NewTensor(len(batch), 3, v.size, v.size)
	for _, r := range batch {
		if ctx.Err() != nil {
			return nil, nil
		}
		img, err := Prepare(frame, r.Rect, v.size, v.opts.Enhance)
		if err != nil {
			v.log.Debug(ctx, "skipping region", logger.Any("rect", r.Rect), logger.Error(err))
			continue
		}
		Fill(tensor.Image(len(kept)), img)
		kept = append(kept, r)
	}
	tensor.N = len(kept)
	tensor.Data = tensor.Data[:len(kept)*3*v.size*v.size]
	return tensor, kept
}

// embed runs the model with bounded retries. It returns the number of
// retries performed alongside the last error.
func (v *Verifier) embed(ctx context.Context, tensor *Tensor) ([][]float32, int, error) {
	var model Model
	select {
	case model = <-v.pool:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	defer func() { v.pool <- model }()

	var lastErr error
	for attempt := 0; attempt <= v.opts.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}
		embs, err := model.Embed(ctx, tensor)
		if err == nil && len(embs) != tensor.N {
			err = fmt.Errorf("model returned %d embeddings for %d inputs", len(embs), tensor.N)
		}
		if err == nil {
			return embs, attempt, nil
		}
		lastErr = err
		v.log.Debug(ctx, "inference attempt failed", logger.Int("attempt", attempt+1), logger.Error(err))
	}
	return nil, v.opts.Retries, lastErr
}

// EmbedRegion returns the normalized embedding of one region.
func (v *Verifier) EmbedRegion(ctx context.Context, frame image.Image, r hero.Rect) ([]float32, error) {
	img, err := Prepare(frame, r, v.size, v.opts.Enhance)
	if err != nil {
		return nil, err
	}
	tensor := NewTensor(1, 3, v.size, v.size)
	Fill(tensor.Image(0), img)

	embs, _, err := v.embed(ctx, tensor)
	if err != nil {
		return nil, err
	}
	Normalize(embs[0])
	return embs[0], nil
}

// Describe returns the k best reference matches for one region.
func (v *Verifier) Describe(ctx context.Context, frame image.Image, r hero.Rect, k int) ([]reference.Match, error) {
	e, err := v.EmbedRegion(ctx, frame, r)
	if err != nil {
		return nil, err
	}
	return v.ref.TopK(e, k), nil
}

// Close releases every model handle.
func (v *Verifier) Close() error {
	var errs []error
	for _, h := range v.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	v.handles = nil
	return errors.Join(errs...)
}

// Normalize scales e to unit L2 norm in place. Zero vectors are left as is.
func Normalize(e []float32) {
	if len(e) == 0 {
		return
	}
	vec := blas32.Vector{N: len(e), Inc: 1, Data: e}
	if norm := blas32.Nrm2(vec); norm > 0 {
		blas32.Scal(1/norm, vec)
	}
}

func split(regions []roi.Region, size int) [][]roi.Region {
	var out [][]roi.Region
	for len(regions) > 0 {
		n := min(size, len(regions))
		out = append(out, regions[:n])
		regions = regions[n:]
	}
	return out
}
