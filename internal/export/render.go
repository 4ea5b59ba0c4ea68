package export

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"writer-backend/internal/content"
	"writer-backend/internal/shared/util"
)

// Format is an export file type.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Raw HTML in model output is dropped (goldmark's default unsafe=false).
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithXHTML()),
)

// Rendered is an export ready to be stored or streamed.
type Rendered struct {
	Body        []byte
	ContentType string
	FileName    string
}

// ParseFormat accepts "txt" or "html"; empty means txt.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatTXT:
		return FormatTXT, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// HTML renders the article's Markdown fields to an HTML fragment.
func HTML(article content.ArticlePayload) (string, error) {
	var src strings.Builder
	for _, part := range []string{article.Introduction, article.Body, article.Conclusion} {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if src.Len() > 0 {
			src.WriteString("\n\n")
		}
		src.WriteString(part)
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src.String()), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Render produces a downloadable file for article.
func Render(article content.ArticlePayload, format Format) (Rendered, error) {
	name := util.Slugify(article.Title, "article") + "." + string(format)
	switch format {
	case FormatTXT:
		return Rendered{Body: []byte(renderText(article)), ContentType: "text/plain; charset=utf-8", FileName: name}, nil
	case FormatHTML:
		fragment := article.HTML
		if fragment == "" {
			var err error
			if fragment, err = HTML(article); err != nil {
				return Rendered{}, err
			}
		}
		return Rendered{Body: []byte(htmlDocument(article, fragment)), ContentType: "text/html; charset=utf-8", FileName: name}, nil
	default:
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func renderText(a content.ArticlePayload) string {
	var b strings.Builder
	b.WriteString(a.Title)
	b.WriteString("\n\n")
	if a.MetaTitle != "" {
		fmt.Fprintf(&b, "Meta title: %s\n", a.MetaTitle)
	}
	if a.MetaDescription != "" {
		fmt.Fprintf(&b, "Meta description: %s\n", a.MetaDescription)
	}
	for _, part := range []string{a.Introduction, a.Body, a.Conclusion} {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(part))
		b.WriteString("\n")
	}
	return b.String()
}

func htmlDocument(a content.ArticlePayload, fragment string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	title := a.MetaTitle
	if title == "" {
		title = a.Title
	}
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	if a.MetaDescription != "" {
		fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(a.MetaDescription))
	}
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(a.Title))
	if a.Thumbnail != "" {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"%s\">\n", html.EscapeString(a.Thumbnail), html.EscapeString(a.Title))
	}
	b.WriteString(fragment)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
