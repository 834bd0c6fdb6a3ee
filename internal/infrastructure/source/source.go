package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"AccessibilityScanner/internal/dom"
	"AccessibilityScanner/internal/ports"
)

const (
	userAgent   = "AccessibilityScanner/1.0"
	maxBodySize = 16 << 20
)

// Loader fetches pages over HTTP or reads them from disk.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.DocumentSource = (*Loader)(nil)

// NewLoader wires an HTTP client; a nil client gets a 20s timeout.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Loader{client: client, logger: logger}
}

// Load returns a document for an http(s) URL, a file:// URL or a plain file path. Files are
// bound to their file:// URL so relative references resolve against the file location.
func (l *Loader) Load(ctx context.Context, target string) (*dom.Document, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("load: empty target")
	}

	parsed, err := url.Parse(target)
	if err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		return l.fetch(ctx, parsed.String())
	}
	path := target
	if err == nil && parsed.Scheme == "file" {
		path = parsed.Path
	}
	return l.readFile(path)
}

func (l *Loader) fetch(ctx context.Context, pageURL string) (*dom.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	// Redirects change the base for relative links.
	final := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	if l.logger != nil {
		l.logger.Debug("document fetched", "url", final, "content_type", resp.Header.Get("Content-Type"))
	}
	return dom.Parse(io.LimitReader(resp.Body, maxBodySize), final)
}

func (l *Loader) readFile(path string) (*dom.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	fileURL := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
	return dom.Parse(f, fileURL)
}
