package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"writer-backend/internal/content"
	"writer-backend/internal/export"
)

func main() {
	outDir := flag.String("out", "./out", "output directory for rendered exports")
	flag.Parse()

	article := sampleArticle()

	for _, format := range []export.Format{export.FormatTXT, export.FormatHTML} {
		file, err := export.Render(article, format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "render %s failed: %v\n", format, err)
			os.Exit(1)
		}
		if err := validateRendered(format, file); err != nil {
			fmt.Fprintf(os.Stderr, "render validation failed: %v\n", err)
			os.Exit(1)
		}
		path, err := writeOutput(*outDir, file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("OK: wrote %s\n", path)
	}

	if err := writeModel(*outDir, article); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}
}

func writeOutput(dir string, file export.Rendered) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, file.FileName)
	return path, os.WriteFile(path, file.Body, 0o644)
}

func writeModel(dir string, article content.ArticlePayload) error {
	payload, err := json.MarshalIndent(article, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "sample_article.json"), payload, 0o644)
}

func validateRendered(format export.Format, file export.Rendered) error {
	body := string(file.Body)
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%s export is empty", format)
	}
	if format == export.FormatHTML && !strings.Contains(body, "<h2>") {
		return fmt.Errorf("html export has no section headings")
	}
	return nil
}

func sampleArticle() content.ArticlePayload {
	return content.ArticlePayload{
		Title:           "SEO Basics Guide",
		MetaTitle:       "SEO Basics: A Practical Guide",
		MetaDescription: "Learn how search engines rank pages and what to fix first.",
		Introduction:    "Search engine optimization decides whether anyone finds your work.",
		Body: "## How search engines crawl\n\nCrawlers follow links and read your sitemap.\n\n" +
			"## Choosing a keyword\n\nPick one phrase per page and use it in the title.\n\n" +
			"## Measuring results\n\nTrack impressions and clicks, not just rankings.",
		Conclusion: "Start with the basics and revisit them every quarter.",
		Status:     content.ArticleGenerated,
	}
}
