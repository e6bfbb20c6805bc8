// Package config loads the site rules used by the link preview engine from a remote URL,
// a local file or the copy embedded in the binary.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	httputil "github.com/lepinkainen/registry-preview/pkg/http"
	"gopkg.in/yaml.v3"
)

// LoaderConfig represents configuration loading options
type LoaderConfig struct {
	RemoteURL         string
	LocalPath         string
	Timeout           time.Duration
	FallbackToDefault bool
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Timeout:           10 * time.Second,
		FallbackToDefault: true,
	}
}

// LoadFromURLWithFallback tries the remote URL, then the local file. It returns the name of
// the source that populated target: "remote", "local" or "default" (target untouched).
func LoadFromURLWithFallback(ctx context.Context, config *LoaderConfig, target any) (string, error) {
	if config.RemoteURL != "" {
		err := loadFromURL(ctx, config.RemoteURL, config.Timeout, target)
		if err == nil {
			return "remote", nil
		}
		slog.Warn("Failed to load remote config", "url", config.RemoteURL, "error", err)
	}

	if config.LocalPath != "" {
		err := loadFromFile(config.LocalPath, target)
		if err == nil {
			return "local", nil
		}
		slog.Warn("Failed to load local config", "path", config.LocalPath, "error", err)
	}

	if !config.FallbackToDefault {
		return "", fmt.Errorf("failed to load configuration from URL and local file")
	}

	return "default", nil
}

func loadFromURL(ctx context.Context, url string, timeout time.Duration, target any) error {
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = timeout

	resp, err := httputil.NewClient(httpConfig).Fetch(ctx, url, httputil.FetchOptions{
		Timeout:         timeout,
		FollowRedirects: true,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch config from URL: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("HTTP error fetching config: %s", resp.Status)
	}

	if err := decode(url, []byte(resp.Body), target); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	return nil
}

func loadFromFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := decode(path, data, target); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

func decode(path string, data []byte, target any) error {
	if detectFormat(path, data) == "json" {
		return json.Unmarshal(data, target)
	}
	return yaml.Unmarshal(data, target)
}

// detectFormat picks "json" or "yaml" from the file extension, then from the content.
func detectFormat(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}
	return "yaml"
}
