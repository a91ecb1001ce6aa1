package main

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/config"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/embed/opencv"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/features/akaze"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/recognizer"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

type frameRecognizer interface {
	Submit(ctx context.Context, frame image.Image) *recognizer.Job
}

// newExtractor returns the keypoint extractor named by keypoint_strategy.
func newExtractor(cfg *config.Config) (features.Extractor, error) {
	opts := features.DefaultOptions()
	opts.Stride = cfg.KeyPointStride
	opts.Threshold = cfg.KeyPointThreshold
	opts.MaxKeyPoints = cfg.MaxKeyPoints

	switch strings.ToLower(cfg.KeyPointStrategy) {
	case config.StrategyHessian:
		return features.NewDetector(features.Hessian{}, opts), nil
	case config.StrategyContrast:
		return features.NewDetector(features.Contrast{}, opts), nil
	case config.StrategyAKAZE:
		return akaze.New(cfg.MaxKeyPoints), nil
	default:
		return nil, fmt.Errorf("unknown keypoint strategy %q", cfg.KeyPointStrategy)
	}
}

// buildRecognizer loads the reference library and model. Failures here are
// fatal: the process cannot serve requests without them.
func buildRecognizer(ctx context.Context, cfg *config.Config, log logger.Logger) (*recognizer.Recognizer, error) {
	var extractor features.Extractor
	if cfg.TemplatesDir != "" {
		ex, err := newExtractor(cfg)
		if err != nil {
			return nil, err
		}
		extractor = ex
	}

	lib, err := reference.Load(ctx, reference.LoadOptions{
		EmbeddingsDir: cfg.EmbeddingsDir,
		TemplatesDir:  cfg.TemplatesDir,
		Extractor:     extractor,
		Logger:        log.Named("reference"),
	})
	if err != nil {
		closeExtractor(extractor)
		return nil, fmt.Errorf("failed to load references: %w", err)
	}

	model, err := opencv.Load(cfg.ModelPath, cfg.ModelInputSize, cfg.ModelOutput)
	if err != nil {
		closeExtractor(extractor)
		return nil, err
	}

	rec, err := recognizer.New(lib, extractor, model, recognizer.SettingsFromConfig(cfg),
		recognizer.WithLogger(log.Named("recognizer")))
	if err != nil {
		closeExtractor(extractor)
		return nil, err
	}
	return rec, nil
}

func closeExtractor(ex features.Extractor) {
	if c, ok := ex.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
