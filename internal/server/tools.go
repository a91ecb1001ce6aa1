package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the screenshot file",
	}
}

func pathOnlySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": pathProperty(),
		},
		"required": []string{"path"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Recognition
		{
			Name:        "hero_recognize",
			Description: "Recognize up to six enemy heroes in a hero-selection screenshot. Returns entries ordered top to bottom with provenance (embedding_only, localizer_confirmed, localizer_only), confidence and bounding box.",
			InputSchema: pathOnlySchema(),
		},
		{
			Name:        "hero_localize",
			Description: "Run only the template localizer: returns the estimated hero column center and every hero found by keypoint matching with its match count.",
			InputSchema: pathOnlySchema(),
		},
		{
			Name:        "hero_annotate",
			Description: "Recognize heroes and return the screenshot as base64 PNG with the column line, localizer hits (dashed) and accepted heroes (solid, labelled with slot and confidence).",
			InputSchema: pathOnlySchema(),
		},

		// Diagnostics
		{
			Name:        "hero_match_region",
			Description: "Embed one rectangular region and return its closest reference heroes by cosine similarity.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty(),
					"x":      map[string]interface{}{"type": "integer", "description": "Left edge X coordinate (0-based)"},
					"y":      map[string]interface{}{"type": "integer", "description": "Top edge Y coordinate (0-based)"},
					"width":  map[string]interface{}{"type": "integer", "description": "Region width in pixels"},
					"height": map[string]interface{}{"type": "integer", "description": "Region height in pixels"},
					"k": map[string]interface{}{
						"type":        "integer",
						"description": "Number of matches to return (default 5)",
						"default":     5,
					},
				},
				"required": []string{"path", "x", "y", "width", "height"},
			},
		},
		{
			Name:        "hero_references",
			Description: "List the hero identities in the reference library with their embedding vector and template counts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: pathOnlySchema(),
		},
		{
			Name:        "map_banner_ocr",
			Description: "Read the map name from the banner in the top-left corner of the screenshot using OCR. Requires Tesseract.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Tesseract language code, e.g. 'eng' or 'rus'. Defaults to the configured languages.",
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
