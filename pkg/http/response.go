package http

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// ReadDecodedBody reads and closes the body, undoing Content-Encoding and converting the
// declared charset to UTF-8. At most limit decoded bytes are read when limit > 0.
func ReadDecodedBody(resp *http.Response, limit int64) (string, error) {
	defer closeBody(resp)

	reader, err := decompress(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return "", err
	}
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}

	utf8Reader, err := charset.NewReader(reader, resp.Header.Get("Content-Type"))
	if err != nil {
		slog.Debug("Charset detection failed, using raw body", "error", err)
		utf8Reader = reader
	}

	data, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

func decompress(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, nil
	case "br":
		return brotli.NewReader(r), nil
	case "deflate":
		// Most servers send zlib-wrapped data despite the name; raw deflate is the rest.
		br := bufio.NewReader(r)
		if header, err := br.Peek(1); err == nil && header[0] == 0x78 {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("failed to create zlib reader: %w", err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return r, nil
	}
}

func closeBody(resp *http.Response) {
	if closeErr := resp.Body.Close(); closeErr != nil {
		slog.Error("Failed to close response body", "error", closeErr)
	}
}
