package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/Sankyuubigan/rivals-counter-peaks/internal/hero"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/imaging"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/recognizer"
	"github.com/Sankyuubigan/rivals-counter-peaks/internal/reference"
	"github.com/Sankyuubigan/rivals-counter-peaks/pkg/logger"
)

// Recognizer is the pipeline the tools run against. *recognizer.Recognizer
// implements it.
type Recognizer interface {
	Recognize(ctx context.Context, frame image.Image) (*recognizer.Report, error)
	Localize(ctx context.Context, frame image.Image) (hero.ColumnLocalization, error)
	MatchRegion(ctx context.Context, frame image.Image, rect hero.Rect, k int) ([]reference.Match, error)
	Annotate(frame image.Image, rep *recognizer.Report) *image.RGBA
	Library() *reference.Library
}

// Server handles MCP protocol communication
type Server struct {
	cache        *imaging.ImageCache
	rec          Recognizer
	ocrLanguages []string
	version      string
	log          logger.Logger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithOCRLanguages sets the default banner OCR languages.
func WithOCRLanguages(langs ...string) Option {
	return func(s *Server) {
		if len(langs) > 0 {
			s.ocrLanguages = langs
		}
	}
}

// WithVersion sets the version reported on initialize.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// New creates an MCP server that answers tool calls with rec.
//
// Parameters:
//   - rec: The recognition backend. *recognizer.Recognizer satisfies it;
//     tests pass a fake.
//   - opts: Optional logger, default OCR languages and reported version.
//
// Returns:
//   - *Server: A server with an empty, bounded screenshot cache. It does not
//     read input until Run or Serve is called.
func New(rec Recognizer, opts ...Option) *Server {
	s := &Server{
		cache:        imaging.NewImageCache(),
		rec:          rec,
		ocrLanguages: []string{"eng"},
		version:      "0.1.0",
		log:          logger.Named("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves requests from stdin to stdout until stdin closes or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to w.
//
// Parameters:
//   - ctx: Cancels the loop between requests and is passed to every tool
//     call, so a recognition in flight stops when ctx ends.
//   - r: Request stream, one JSON object per line. Lines up to 1 MB are
//     accepted.
//   - w: Response stream. Notifications produce no output.
//
// Returns:
//   - error: nil when r reaches EOF, ctx.Err() when ctx has ended by the
//     next line, or the wrapped read error. Write failures are logged.
//
// Malformed lines are logged and skipped; they do not stop the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn(ctx, "failed to parse request", logger.Error(err))
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.Error(ctx, "failed to encode response", logger.Error(err))
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "hero-recognize",
				"version": s.version,
			},
		},
	}
}
