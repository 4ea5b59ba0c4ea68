package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchConvertsHTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><h1>SEO Basics</h1><p>Use <strong>keywords</strong> wisely.</p></body></html>`))
	}))
	defer srv.Close()

	doc, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(doc.Text, "# SEO Basics") || !strings.Contains(doc.Text, "**keywords**") {
		t.Fatalf("unexpected markdown %q", doc.Text)
	}
}

func TestFetchAllSkipsFailures(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain notes"))
	}))
	defer ok.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer broken.Close()

	f := NewFetcher(time.Second)
	f.client.SetRetryCount(0)
	docs := f.FetchAll(context.Background(), []string{broken.URL, ok.URL})
	if len(docs) != 1 || docs[0].URL != ok.URL || docs[0].Text != "plain notes" {
		t.Fatalf("unexpected docs %+v", docs)
	}
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("é", 50)))
	}))
	defer srv.Close()

	f := NewFetcher(time.Second)
	f.MaxChars = 10
	doc, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !doc.Truncated || len([]rune(doc.Text)) != 10 {
		t.Fatalf("expected 10 runes truncated, got %d (%v)", len([]rune(doc.Text)), doc.Truncated)
	}
}
