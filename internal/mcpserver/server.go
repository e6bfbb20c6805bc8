// Package mcpserver exposes link preview generation as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Previews is the part of the preview engine the tools call.
type Previews interface {
	GeneratePreview(ctx context.Context, rawURL string, hints *linkpreview.FallbackHints) *linkpreview.Result
	GetCacheStats(ctx context.Context) (*linkpreview.CacheStats, error)
}

// NewServer creates an MCP server with the preview tools registered.
func NewServer(previews Previews, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"registry-preview",
		version,
		server.WithToolCapabilities(true),
	)
	registerTools(s, previews)
	return s
}

// Serve runs the MCP server on stdin/stdout until the input closes.
func Serve(previews Previews, version string) error {
	return server.ServeStdio(NewServer(previews, version))
}

type tools struct {
	previews Previews
}

func registerTools(s *server.MCPServer, previews Previews) {
	t := &tools{previews: previews}

	previewTool := mcp.NewTool("generate_link_preview",
		mcp.WithDescription("Fetch a product page and return its title, image, price, availability and site name. Results are cached."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the product page"),
		),
		mcp.WithString("name",
			mcp.Description("Item name to use when the page cannot be scraped"),
		),
		mcp.WithString("image_url",
			mcp.Description("Image URL to use when the page cannot be scraped"),
		),
		mcp.WithString("description",
			mcp.Description("Description to use when the page cannot be scraped"),
		),
	)
	s.AddTool(previewTool, t.handleGeneratePreview)

	statsTool := mcp.NewTool("link_preview_cache_stats",
		mcp.WithDescription("Report cached preview counts, the share still valid and hit/miss counters"),
	)
	s.AddTool(statsTool, t.handleCacheStats)
}

func (t *tools) handleGeneratePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := strings.TrimSpace(request.GetString("url", ""))
	if rawURL == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	if !urlutils.IsHTTPURL(rawURL) {
		return mcp.NewToolResultError(fmt.Sprintf("not an absolute http(s) URL: %s", rawURL)), nil
	}

	hints := &linkpreview.FallbackHints{
		Name:        request.GetString("name", ""),
		ImageURL:    request.GetString("image_url", ""),
		Description: request.GetString("description", ""),
	}

	result := t.previews.GeneratePreview(ctx, rawURL, hints)
	return jsonResult(result)
}

func (t *tools) handleCacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.previews.GetCacheStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cache stats error: %v", err)), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
