package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/ocr"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "hero_recognize").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.Warn(ctx, "tool failed", logger.String("tool", params.Name), logger.Error(err))
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	switch name {
	// Recognition
	case "hero_recognize":
		return s.handleHeroRecognize(ctx, args)
	case "hero_localize":
		return s.handleHeroLocalize(ctx, args)
	case "hero_annotate":
		return s.handleHeroAnnotate(ctx, args)

	// Diagnostics
	case "hero_match_region":
		return s.handleHeroMatchRegion(ctx, args)
	case "hero_references":
		return s.handleHeroReferences()
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "map_banner_ocr":
		return s.handleMapBannerOCR(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func decodePath(args json.RawMessage) (string, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", err
	}
	if a.Path == "" {
		return "", errors.New("path is required")
	}
	return a.Path, nil
}

// === Recognition Handlers ===

type recognizeResult struct {
	ID         string       `json:"id"`
	Heroes     []string     `json:"heroes"`
	Entries    []hero.Entry `json:"entries"`
	ROIs       int          `json:"rois"`
	Detections int          `json:"detections"`
	Dropped    int          `json:"dropped_batches"`
	DurationMS int64        `json:"duration_ms"`
	DebugPath  string       `json:"debug_path,omitempty"`
}

func (s *Server) handleHeroRecognize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	frame, err := s.cache.LoadFrame(path)
	if err != nil {
		return nil, err
	}
	rep, err := s.rec.Recognize(ctx, frame)
	if err != nil {
		return nil, err
	}
	entries := rep.Result.Entries
	if entries == nil {
		entries = []hero.Entry{}
	}
	return &recognizeResult{
		ID:         rep.ID,
		Heroes:     rep.Result.Names(),
		Entries:    entries,
		ROIs:       rep.ROIs,
		Detections: len(rep.Detections),
		Dropped:    rep.Stats.DroppedBatches,
		DurationMS: rep.Duration.Milliseconds(),
		DebugPath:  rep.DebugPath,
	}, nil
}

func (s *Server) handleHeroLocalize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	frame, err := s.cache.LoadFrame(path)
	if err != nil {
		return nil, err
	}
	loc, err := s.rec.Localize(ctx, frame)
	if err != nil {
		return nil, err
	}
	if loc.Positions == nil {
		loc.Positions = []hero.Position{}
	}
	return loc, nil
}

func (s *Server) handleHeroAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	frame, err := s.cache.LoadFrame(path)
	if err != nil {
		return nil, err
	}
	rep, err := s.rec.Recognize(ctx, frame)
	if err != nil {
		return nil, err
	}
	return imaging.EncodePNG(s.rec.Annotate(frame, rep))
}

// === Diagnostic Handlers ===

type matchRegionArgs struct {
	Path   string `json:"path"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	K      int    `json:"k"`
}

type matchRegionResult struct {
	Rect    hero.Rect         `json:"rect"`
	Matches []reference.Match `json:"matches"`
}

func (s *Server) handleHeroMatchRegion(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a matchRegionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.K <= 0 {
		a.K = 5
	}
	rect := hero.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
	if rect.Empty() {
		return nil, fmt.Errorf("invalid region %dx%d", a.Width, a.Height)
	}
	frame, err := s.cache.LoadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	matches, err := s.rec.MatchRegion(ctx, frame, rect, a.K)
	if err != nil {
		return nil, err
	}
	return &matchRegionResult{Rect: rect, Matches: matches}, nil
}

type referencesResult struct {
	Count     int                   `json:"count"`
	Dimension int                   `json:"dimension"`
	Entries   []reference.EntryInfo `json:"entries"`
}

func (s *Server) handleHeroReferences() (interface{}, error) {
	lib := s.rec.Library()
	return &referencesResult{
		Count:     lib.Len(),
		Dimension: lib.Dim(),
		Entries:   lib.Entries(),
	}, nil
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, path)
}

type bannerArgs struct {
	Path     string `json:"path"`
	Language string `json:"language"`
}

func (s *Server) handleMapBannerOCR(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a bannerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	frame, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	langs := s.ocrLanguages
	if a.Language != "" {
		langs = []string{a.Language}
	}
	return ocr.NewReader(langs, ocr.WithLogger(s.log.Named("ocr"))).ReadBanner(ctx, frame)
}
