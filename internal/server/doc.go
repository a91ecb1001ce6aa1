// Package server implements the MCP (Model Context Protocol) server that
// exposes hero recognition as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs go to stderr so they never interleave with responses.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Recognition:
//   - hero_recognize: Ordered enemy heroes with provenance and confidence
//   - hero_localize: Column center and template-matched hero positions
//   - hero_annotate: Screenshot with column line, hits and accepted boxes
//
// Diagnostics:
//   - hero_match_region: Top-K reference matches for one region
//   - hero_references: Identities in the reference library
//   - image_dimensions: Width and height of a screenshot
//   - map_banner_ocr: Map name read from the top-left banner
//
// # Image Caching
//
// Decoded screenshots are cached by path. Every call stats the file and
// decodes it again when its modification time or size changed, so a capture
// tool that overwrites the same path before each request is always seen
// fresh. The cache holds a bounded number of frames.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the
// cause in the data field. A recognition that finds fewer than six heroes is
// a successful result, not an error.
package server
