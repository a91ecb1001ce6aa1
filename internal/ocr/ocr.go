// Package ocr reads the map-name banner from a hero-selection screenshot
// using Tesseract (via gosseract/v2).
//
// # Prerequisites
//
// Tesseract and the language data for every configured language must be
// installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng tesseract-ocr-rus
//   - macOS: brew install tesseract tesseract-lang
//
// The banner sits in the top-left corner of the frame: a third of the width
// and a tenth of the height (see imaging.TopLeftBanner). Only words Tesseract
// is more than 50% confident about are kept.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// DefaultMinConfidence is the word confidence a banner word must exceed.
const DefaultMinConfidence = 0.5

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Word is one recognized word with its location in the original frame.
type Word struct {
	Text string `json:"text"`
	// Confidence is the Tesseract confidence scaled to 0..1.
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
}

// Result is the text read from one region.
type Result struct {
	// Text joins the kept words with single spaces.
	Text   string `json:"text"`
	Words  []Word `json:"words"`
	Region Bounds `json:"region"`
}

// Reader runs Tesseract. Each call uses its own client, so a Reader is safe
// for concurrent use.
type Reader struct {
	languages     []string
	minConfidence float64
	log           logger.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the reader logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMinConfidence overrides DefaultMinConfidence.
func WithMinConfidence(c float64) Option {
	return func(r *Reader) { r.minConfidence = c }
}

// NewReader returns a Reader for the given Tesseract language codes,
// defaulting to English.
func NewReader(languages []string, opts ...Option) *Reader {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	r := &Reader{
		languages:     languages,
		minConfidence: DefaultMinConfidence,
		log:           logger.Named("ocr"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Languages returns the configured language codes.
func (r *Reader) Languages() []string { return r.languages }

// ReadBanner reads the map-name banner of frame.
func (r *Reader) ReadBanner(ctx context.Context, frame image.Image) (*Result, error) {
	return r.ReadRegion(ctx, frame, imaging.TopLeftBanner(frame.Bounds()))
}

// ReadRegion reads the text inside rect. Word bounds are reported in frame
// coordinates.
func (r *Reader) ReadRegion(ctx context.Context, frame image.Image, rect image.Rectangle) (*Result, error) {
	crop, err := imaging.CropRegion(frame, rect)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, crop); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.languages...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	origin := rect.Intersect(frame.Bounds()).Min
	words := keepWords(boxes, r.minConfidence, origin)
	res := &Result{
		Words:  words,
		Region: toBounds(rect.Intersect(frame.Bounds())),
	}
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.Text
	}
	res.Text = strings.Join(texts, " ")

	r.log.Debug(ctx, "banner read",
		logger.String("text", res.Text),
		logger.Int("words", len(words)),
		logger.Int("boxes", len(boxes)))
	return res, nil
}

// keepWords drops empty words and words at or below minConfidence, shifting
// the rest by origin.
func keepWords(boxes []gosseract.BoundingBox, minConfidence float64, origin image.Point) []Word {
	words := make([]Word, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		confidence := box.Confidence / 100.0
		if text == "" || confidence <= minConfidence {
			continue
		}
		words = append(words, Word{
			Text:       text,
			Confidence: confidence,
			Bounds:     toBounds(box.Box.Add(origin)),
		})
	}
	return words
}

func toBounds(r image.Rectangle) Bounds {
	return Bounds{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Version returns the installed Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}
