package http

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestClient_FetchSendsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("User-Agent", "TestAgent/1.0")
	headers.Set("Accept-Language", "en-US")

	resp, err := NewClient(nil).Fetch(context.Background(), server.URL, FetchOptions{Headers: headers})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got.Get("User-Agent") != "TestAgent/1.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != "en-US" {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if resp.StatusCode != http.StatusOK || !resp.IsSuccess() {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Body, "<title>ok</title>") {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_FetchNon2xxIsNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Please verify you are human"))
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), server.URL, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusForbidden || resp.IsSuccess() {
		t.Errorf("StatusCode = %d, IsSuccess = %v", resp.StatusCode, resp.IsSuccess())
	}
	if resp.Body != "Please verify you are human" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestClient_FetchRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved here"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(nil)

	t.Run("follow", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), server.URL+"/old", FetchOptions{FollowRedirects: true})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.Body != "moved here" {
			t.Errorf("Body = %q", resp.Body)
		}
		if resp.FinalURL != server.URL+"/new" {
			t.Errorf("FinalURL = %q", resp.FinalURL)
		}
	})

	t.Run("no follow", func(t *testing.T) {
		resp, err := client.Fetch(context.Background(), server.URL+"/old", FetchOptions{FollowRedirects: false})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.StatusCode != http.StatusMovedPermanently {
			t.Errorf("StatusCode = %d, want 301", resp.StatusCode)
		}
	})
}

func TestClient_FetchTooManyRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: time.Second, MaxRedirects: 3})
	if _, err := client.Fetch(context.Background(), server.URL+"/", FetchOptions{FollowRedirects: true}); err == nil {
		t.Error("expected redirect loop error")
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	start := time.Now()
	_, err := NewClient(nil).Fetch(context.Background(), server.URL, FetchOptions{Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("timeout not honoured, took %v", elapsed)
	}
}

func TestClient_FetchDecodesContentEncoding(t *testing.T) {
	const page = "<html><head><title>Compressed</title></head></html>"

	encoders := map[string]func([]byte) []byte{
		"gzip": func(b []byte) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, _ = w.Write(b)
			_ = w.Close()
			return buf.Bytes()
		},
		"br": func(b []byte) []byte {
			var buf bytes.Buffer
			w := brotli.NewWriter(&buf)
			_, _ = w.Write(b)
			_ = w.Close()
			return buf.Bytes()
		},
		"deflate": func(b []byte) []byte {
			var buf bytes.Buffer
			w := zlib.NewWriter(&buf)
			_, _ = w.Write(b)
			_ = w.Close()
			return buf.Bytes()
		},
	}

	for encoding, encode := range encoders {
		t.Run(encoding, func(t *testing.T) {
			payload := encode([]byte(page))
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write(payload)
			}))
			defer server.Close()

			headers := http.Header{}
			headers.Set("Accept-Encoding", "gzip, deflate, br")

			resp, err := NewClient(nil).Fetch(context.Background(), server.URL, FetchOptions{Headers: headers})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if resp.Body != page {
				t.Errorf("Body = %q, want %q", resp.Body, page)
			}
		})
	}
}

func TestClient_FetchConvertsCharset(t *testing.T) {
	// "Café" in ISO-8859-1
	latin1 := []byte{'<', 'p', '>', 'C', 'a', 'f', 0xe9, '<', '/', 'p', '>'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write(latin1)
	}))
	defer server.Close()

	resp, err := NewClient(nil).Fetch(context.Background(), server.URL, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Body != "<p>Café</p>" {
		t.Errorf("Body = %q, want UTF-8 converted text", resp.Body)
	}
}

func TestClient_FetchBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(strings.Repeat("a", 4096)))
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: time.Second, MaxBodyBytes: 100, MaxRedirects: 10})
	resp, err := client.Fetch(context.Background(), server.URL, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Body) != 100 {
		t.Errorf("len(Body) = %d, want 100", len(resp.Body))
	}
}
