// Package config defines the recognizer configuration and its loading.
//
// Values are layered: defaults from New, then an optional YAML file, then
// HERO_* environment variables. Keys are flat and match the koanf tags below.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Reference data and model.
	EmbeddingsDir  string `koanf:"embeddings_dir"`
	TemplatesDir   string `koanf:"templates_dir"`
	ModelPath      string `koanf:"model_path"`
	ModelInputSize int    `koanf:"model_input_size"`
	ModelOutput    string `koanf:"model_output"`

	// Similarity thresholds.
	LoggingThreshold      float64 `koanf:"logging_threshold"`
	DecisionThreshold     float64 `koanf:"decision_threshold"`
	ConfirmationThreshold float64 `koanf:"confirmation_threshold"`

	// Candidate regions.
	ROIWindowSize          int     `koanf:"roi_window_size"`
	ROIMaxCount            int     `koanf:"roi_max_count"`
	ROIJitter              int     `koanf:"roi_jitter"`
	ROIColumnStrideRatio   float64 `koanf:"roi_column_stride_ratio"`
	ROIFallbackStrideRatio float64 `koanf:"roi_fallback_stride_ratio"`

	// Fusion.
	YOverlapRatio   float64 `koanf:"y_overlap_ratio"`
	NMSIoUThreshold float64 `koanf:"nms_iou_threshold"`
	TeamSize        int     `koanf:"team_size"`

	// Column localizer.
	MinMatchCount      int     `koanf:"min_match_count"`
	LoweRatio          float64 `koanf:"lowe_ratio"`
	MaxKeyPoints       int     `koanf:"max_keypoints"`
	KeyPointStride     int     `koanf:"keypoint_stride"`
	KeyPointThreshold  float64 `koanf:"keypoint_threshold"`
	KeyPointStrategy   string  `koanf:"keypoint_strategy"`
	MinHeroesForColumn int     `koanf:"min_heroes_for_column"`
	ColumnBucketPx     int     `koanf:"column_bucket_px"`

	// Embedding verifier.
	BatchSize        int  `koanf:"batch_size"`
	Workers          int  `koanf:"workers"`
	InferenceRetries int  `koanf:"inference_retries"`
	EnhanceROIs      bool `koanf:"enhance_rois"`

	// RequestTimeout bounds one recognition request; on expiry in-flight work is canceled.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// DebugDir enables debug session dumps when set.
	DebugDir string `koanf:"debug_dir"`
	// DebugSaveCrops also writes every ROI crop into the session directory.
	DebugSaveCrops bool `koanf:"debug_save_crops"`

	// MetricsAddr enables the /metrics listener when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// OCRLanguages are the Tesseract languages used for the map banner.
	OCRLanguages []string `koanf:"ocr_languages"`
}

// Keypoint strategies.
const (
	StrategyHessian  = "hessian"
	StrategyContrast = "contrast"
	StrategyAKAZE    = "akaze"
)

// New returns a Config populated with defaults.
func New() *Config {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	if workers > 4 {
		workers = 4
	}
	return &Config{
		LogLevel:               "info",
		EmbeddingsDir:          "resources/embeddings_padded",
		TemplatesDir:           "resources/heroes_icons",
		ModelPath:              "vision_models/dinov2-base/model.onnx",
		ModelInputSize:         224,
		LoggingThreshold:       0.10,
		DecisionThreshold:      0.65,
		ConfirmationThreshold:  0.40,
		ROIWindowSize:          93,
		ROIMaxCount:            150,
		ROIJitter:              3,
		ROIColumnStrideRatio:   0.8,
		ROIFallbackStrideRatio: 0.9,
		YOverlapRatio:          0.5,
		NMSIoUThreshold:        0.4,
		TeamSize:               6,
		MinMatchCount:          4,
		LoweRatio:              0.75,
		MaxKeyPoints:           1000,
		KeyPointStride:         3,
		KeyPointThreshold:      35,
		KeyPointStrategy:       StrategyHessian,
		MinHeroesForColumn:     1,
		ColumnBucketPx:         10,
		BatchSize:              32,
		Workers:                workers,
		InferenceRetries:       1,
		EnhanceROIs:            true,
		RequestTimeout:         15 * time.Second,
		OCRLanguages:           []string{"eng", "rus"},
	}
}

// Validate reports the first out-of-range value.
func (c *Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.EmbeddingsDir != "", "embeddings_dir must not be empty"},
		{c.ModelInputSize > 0, "model_input_size must be positive"},
		{inUnit(c.LoggingThreshold), "logging_threshold must be within [0,1]"},
		{inUnit(c.DecisionThreshold), "decision_threshold must be within [0,1]"},
		{inUnit(c.ConfirmationThreshold), "confirmation_threshold must be within [0,1]"},
		{c.LoggingThreshold <= c.DecisionThreshold, "logging_threshold must not exceed decision_threshold"},
		{c.ROIWindowSize > 0, "roi_window_size must be positive"},
		{c.ROIMaxCount > 0, "roi_max_count must be positive"},
		{c.ROIJitter >= 0, "roi_jitter must not be negative"},
		{c.ROIColumnStrideRatio > 0, "roi_column_stride_ratio must be positive"},
		{c.ROIFallbackStrideRatio > 0, "roi_fallback_stride_ratio must be positive"},
		{inUnit(c.YOverlapRatio), "y_overlap_ratio must be within [0,1]"},
		{inUnit(c.NMSIoUThreshold), "nms_iou_threshold must be within [0,1]"},
		{c.TeamSize >= 1 && c.TeamSize <= 6, "team_size must be within [1,6]"},
		{c.MinMatchCount >= 1, "min_match_count must be at least 1"},
		{c.LoweRatio > 0 && c.LoweRatio <= 1, "lowe_ratio must be within (0,1]"},
		{c.MaxKeyPoints > 0, "max_keypoints must be positive"},
		{c.KeyPointStride > 0, "keypoint_stride must be positive"},
		{c.MinHeroesForColumn >= 1, "min_heroes_for_column must be at least 1"},
		{c.ColumnBucketPx > 0, "column_bucket_px must be positive"},
		{c.BatchSize > 0, "batch_size must be positive"},
		{c.Workers > 0, "workers must be positive"},
		{c.InferenceRetries >= 0, "inference_retries must not be negative"},
		{c.RequestTimeout >= 0, "request_timeout must not be negative"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.msg)
		}
	}
	switch strings.ToLower(c.KeyPointStrategy) {
	case StrategyHessian, StrategyContrast, StrategyAKAZE:
	default:
		return fmt.Errorf("%w: unknown keypoint_strategy %q", ErrInvalidConfig, c.KeyPointStrategy)
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
