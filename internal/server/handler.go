package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
	"github.com/lepinkainen/registry-preview/pkg/urlutils"
)

const maxRequestBody = 64 << 10

// PreviewService is the part of the preview engine the HTTP surface uses.
type PreviewService interface {
	GeneratePreview(ctx context.Context, rawURL string, hints *linkpreview.FallbackHints) *linkpreview.Result
	GetCacheStats(ctx context.Context) (*linkpreview.CacheStats, error)
	InvalidateCacheForURL(ctx context.Context, url string) error
	CleanupExpiredCache(ctx context.Context) (int64, error)
}

// Handler serves the preview and cache admin endpoints.
type Handler struct {
	previews PreviewService
}

func NewHandler(previews PreviewService) *Handler {
	return &Handler{previews: previews}
}

type scrapeRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// ScrapePreview handles POST /scrape-preview. It always answers 200 with a preview for a
// valid URL, even when that preview is the "Preview unavailable" placeholder.
func (h *Handler) ScrapePreview(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !urlutils.IsHTTPURL(req.URL) {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	hints := &linkpreview.FallbackHints{
		Name:        req.Name,
		ImageURL:    req.ImageURL,
		Description: req.Description,
	}

	result := h.previews.GeneratePreview(r.Context(), req.URL, hints)
	writeJSON(w, http.StatusOK, result)
}

// CacheStats handles GET /api/preview-cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.previews.GetCacheStats(r.Context())
	if err != nil {
		slog.Error("Failed to read cache stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// InvalidateCache handles DELETE /api/preview-cache?url=...
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	target := strings.TrimSpace(r.URL.Query().Get("url"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	if err := h.previews.InvalidateCacheForURL(r.Context(), target); err != nil && !errors.Is(err, linkpreview.ErrNotFound) {
		slog.Error("Failed to invalidate cached preview", "url", target, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to invalidate cached preview")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CleanupCache handles POST /api/preview-cache/cleanup.
func (h *Handler) CleanupCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.previews.CleanupExpiredCache(r.Context())
	if err != nil {
		slog.Error("Failed to clean up preview cache", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clean up preview cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
