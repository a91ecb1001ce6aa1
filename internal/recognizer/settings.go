package recognizer

import (
	"time"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/config"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/embed"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/fusion"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/localize"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
)

// Settings gathers the options of every pipeline stage.
type Settings struct {
	ROI      roi.Options
	Localize localize.Options
	Verify   embed.Options
	Fusion   fusion.Options

	// RequestTimeout bounds Recognize and Submit. Zero disables it.
	RequestTimeout time.Duration
	// DebugDir enables debug session dumps when set.
	DebugDir       string
	DebugSaveCrops bool
}

// DefaultSettings returns the production settings.
func DefaultSettings() Settings {
	return Settings{
		ROI:            roi.DefaultOptions(),
		Localize:       localize.DefaultOptions(),
		Verify:         embed.DefaultOptions(),
		Fusion:         fusion.DefaultOptions(),
		RequestTimeout: 15 * time.Second,
	}
}

// SettingsFromConfig maps a validated configuration onto Settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ROI: roi.Options{
			Window:              cfg.ROIWindowSize,
			MaxCount:            cfg.ROIMaxCount,
			Jitter:              cfg.ROIJitter,
			ColumnStrideRatio:   cfg.ROIColumnStrideRatio,
			FallbackStrideRatio: cfg.ROIFallbackStrideRatio,
		},
		Localize: localize.Options{
			MinMatchCount:      cfg.MinMatchCount,
			LoweRatio:          cfg.LoweRatio,
			MinHeroesForColumn: cfg.MinHeroesForColumn,
			BucketPx:           cfg.ColumnBucketPx,
		},
		Verify: embed.Options{
			BatchSize:        cfg.BatchSize,
			Workers:          cfg.Workers,
			Retries:          cfg.InferenceRetries,
			LoggingThreshold: cfg.LoggingThreshold,
			Enhance:          cfg.EnhanceROIs,
		},
		Fusion: fusion.Options{
			DecisionThreshold:     cfg.DecisionThreshold,
			ConfirmationThreshold: cfg.ConfirmationThreshold,
			YOverlapRatio:         cfg.YOverlapRatio,
			NMSThreshold:          cfg.NMSIoUThreshold,
			RowHeight:             cfg.ROIWindowSize,
			Slots:                 cfg.TeamSize,
		},
		RequestTimeout: cfg.RequestTimeout,
		DebugDir:       cfg.DebugDir,
		DebugSaveCrops: cfg.DebugSaveCrops,
	}
}
