package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-resty/resty/v2"
	"github.com/ledongthuc/pdf"

	"writer-backend/internal/shared/telemetry"
)

const (
	defaultMaxChars = 6000
	maxBodyBytes    = 8 << 20
	retryWait       = 500 * time.Millisecond
)

// Document is the readable text of one source URL.
type Document struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Fetcher downloads source URLs and reduces them to plain text or Markdown.
type Fetcher struct {
	client    *resty.Client
	converter *md.Converter
	MaxChars  int
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(1).
			SetRetryWaitTime(retryWait).
			SetHeader("User-Agent", "writer-backend/1.0"),
		converter: md.NewConverter("", true, nil),
		MaxChars:  defaultMaxChars,
	}
}

// FetchAll returns one Document per reachable URL. Failures are logged and
// skipped.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []Document {
	docs := make([]Document, 0, len(urls))
	for _, u := range urls {
		doc, err := f.Fetch(ctx, u)
		if err != nil {
			telemetry.Warn("sources.fetch_failed", map[string]any{
				"url":   u,
				"error": err,
			})
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (Document, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusOK {
		return Document{}, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode(), url)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", url, err)
	}

	text, err := f.toText(resp.Header().Get("Content-Type"), data)
	if err != nil {
		return Document{}, fmt.Errorf("convert %s: %w", url, err)
	}
	text, truncated := truncate(strings.TrimSpace(text), f.MaxChars)
	return Document{URL: url, Text: text, Truncated: truncated}, nil
}

func (f *Fetcher) toText(contentType string, data []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
		mediaType, _, _ = mime.ParseMediaType(mediaType)
	}
	switch {
	case mediaType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-")):
		return extractPDF(data)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return f.converter.ConvertString(string(data))
	case strings.HasPrefix(mediaType, "text/"):
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}
