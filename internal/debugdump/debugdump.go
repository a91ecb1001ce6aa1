// Package debugdump writes recognition sessions to disk for offline review:
// a JSON record of thresholds, candidate regions, detections and the final
// result, an annotated copy of the frame and optionally every region crop.
package debugdump

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"time"

	dimaging "github.com/disintegration/imaging"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/roi"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// Thresholds records the settings a session ran with.
type Thresholds struct {
	Logging       float64 `json:"logging"`
	Decision      float64 `json:"decision"`
	Confirmation  float64 `json:"confirmation"`
	YOverlapRatio float64 `json:"y_overlap_ratio"`
	NMSIoU        float64 `json:"nms_iou"`
	Window        int     `json:"window"`
}

// Session is one recognition request as written to disk.
type Session struct {
	ID             string                  `json:"id"`
	Timestamp      time.Time               `json:"timestamp"`
	FrameWidth     int                     `json:"frame_width"`
	FrameHeight    int                     `json:"frame_height"`
	Thresholds     Thresholds              `json:"thresholds"`
	Localization   hero.ColumnLocalization `json:"localization"`
	TotalROIs      int                     `json:"total_rois"`
	ROIsByOrigin   map[string]int          `json:"rois_by_origin"`
	Detections     []hero.Detection        `json:"detections_above_threshold"`
	FinalResult    []hero.Entry            `json:"final_detections"`
	DroppedBatches int                     `json:"dropped_batches"`
	DurationMillis int64                   `json:"duration_ms"`
}

// Writer stores sessions under a directory.
type Writer struct {
	dir       string
	saveCrops bool
	log       logger.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer logger.
func WithLogger(log logger.Logger) Option {
	return func(w *Writer) {
		if log != nil {
			w.log = log
		}
	}
}

// WithCrops also saves every region crop.
func WithCrops(save bool) Option {
	return func(w *Writer) { w.saveCrops = save }
}

// New creates dir if needed and returns a Writer for it.
func New(dir string, opts ...Option) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	w := &Writer{dir: dir, log: logger.Named("debugdump")}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores s, the annotated frame and, when enabled, the region crops.
// It returns the path of the JSON record.
func (w *Writer) Write(ctx context.Context, frame image.Image, s Session, regions []roi.Region) (string, error) {
	base := filepath.Join(w.dir, fmt.Sprintf("session_%s_%s", s.Timestamp.Format("20060102_150405"), shortID(s.ID)))

	s.TotalROIs = len(regions)
	s.ROIsByOrigin = CountOrigins(regions)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	jsonPath := base + ".json"
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write session: %w", err)
	}

	if err := dimaging.Save(Annotate(frame, s), base+".png"); err != nil {
		return jsonPath, fmt.Errorf("failed to write annotated frame: %w", err)
	}

	if w.saveCrops && len(regions) > 0 {
		cropDir := base + "_crops"
		if err := os.MkdirAll(cropDir, 0o755); err != nil {
			return jsonPath, fmt.Errorf("failed to create crop directory: %w", err)
		}
		for i, r := range regions {
			if err := ctx.Err(); err != nil {
				return jsonPath, err
			}
			crop, err := imaging.CropRegion(frame, r.Rect.Image())
			if err != nil {
				continue
			}
			name := fmt.Sprintf("roi_%03d_%s_%d_%d.png", i, r.Origin, r.Rect.X, r.Rect.Y)
			if err := dimaging.Save(crop, filepath.Join(cropDir, name)); err != nil {
				return jsonPath, fmt.Errorf("failed to write crop: %w", err)
			}
		}
	}

	w.log.Debug(ctx, "debug session written", logger.String("path", jsonPath))
	return jsonPath, nil
}

// CountOrigins tallies regions by origin name.
func CountOrigins(regions []roi.Region) map[string]int {
	out := make(map[string]int)
	for _, r := range regions {
		out[r.Origin.String()]++
	}
	return out
}

// Annotate draws the column line, localizer hits (dashed) and accepted
// entries (solid, labelled with slot and confidence) over a copy of frame.
func Annotate(frame image.Image, s Session) *image.RGBA {
	names := map[string]int{}
	for _, e := range s.FinalResult {
		names[e.Name] = 0
	}
	for _, p := range s.Localization.Positions {
		names[p.Name] = 0
	}
	ordered := make([]string, 0, len(names))
	for n := range names {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)
	for i, n := range ordered {
		names[n] = i
	}

	a := imaging.Annotation{
		ColumnX:     s.Localization.ColumnX,
		HasColumn:   s.Localization.HasColumn,
		ColumnColor: "#FFFF00",
	}
	for _, p := range s.Localization.Positions {
		a.Marks = append(a.Marks, imaging.Mark{
			Rect:   p.Rect(max(s.Thresholds.Window, 1)).Image(),
			Group:  names[p.Name],
			Dashed: true,
		})
		a.Points = append(a.Points, image.Point{X: p.X, Y: p.Y})
	}
	for i, e := range s.FinalResult {
		a.Marks = append(a.Marks, imaging.Mark{
			Rect:  e.Rect.Image(),
			Label: fmt.Sprintf("%d %.2f", i+1, e.Confidence),
			Group: names[e.Name],
		})
	}
	return imaging.Annotate(frame, a)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
