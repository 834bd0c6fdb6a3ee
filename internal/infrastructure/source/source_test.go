package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<!DOCTYPE html><html lang="ko"><head><title>테스트 페이지</title></head><body><img src="a.png"></body></html>`

func TestLoadHTTP(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		agents <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	doc, err := NewLoader(srv.Client(), nil).Load(context.Background(), srv.URL+"/old")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if doc.Title() != "테스트 페이지" {
		t.Fatalf("unexpected title %q", doc.Title())
	}
	if doc.URL() != srv.URL+"/new" {
		t.Fatalf("document should be bound to the final url, got %s", doc.URL())
	}
	if agent := <-agents; !strings.HasPrefix(agent, "AccessibilityScanner/") {
		t.Fatalf("unexpected user agent %q", agent)
	}
}

func TestLoadHTTPStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	if _, err := NewLoader(srv.Client(), nil).Load(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	loader := NewLoader(nil, nil)
	for _, target := range []string{path, "file://" + filepath.ToSlash(path)} {
		doc, err := loader.Load(context.Background(), target)
		if err != nil {
			t.Fatalf("Load(%s) returned error: %v", target, err)
		}
		if doc.Find("img").Length() != 1 {
			t.Fatalf("Load(%s) lost content", target)
		}
		if !strings.HasPrefix(doc.URL(), "file://") {
			t.Fatalf("file documents are bound to a file url, got %s", doc.URL())
		}
	}

	if _, err := loader.Load(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty target")
	}
}
