package main

// Run both generation steps for a single request without touching storage:
//   go run ./cmd/prompttest -title "SEO Basics Guide" -keyword seo -words 1200

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"writer-backend/internal/content"
	"writer-backend/internal/generation"
	"writer-backend/internal/requests"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/validation"
	"writer-backend/internal/sources"
)

type sourceList []string

func (s *sourceList) String() string { return strings.Join(*s, ",") }

func (s *sourceList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type output struct {
	Request   requests.GenerationRequest `json:"request"`
	Structure content.StructurePayload   `json:"structure"`
	Article   *content.ArticlePayload    `json:"article,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitErr(err.Error())
	}

	var urls sourceList
	title := flag.String("title", "", "Article title")
	keyword := flag.String("keyword", "", "Target keyword")
	words := flag.Int("words", 1000, "Target word count")
	instructions := flag.String("instructions", "", "Additional instructions")
	flag.Var(&urls, "source", "Source URL (repeatable, at most two)")
	structureOnly := flag.Bool("structure-only", false, "Stop after the structure step")
	outPath := flag.String("out", "", "Path to write JSON output (optional)")
	provider := flag.String("provider", cfg.GenerationProvider, "Generation provider")
	model := flag.String("model", cfg.GenerationModel, "Generation model")
	flag.Parse()

	req, err := requests.NewValidator().Validate("prompttest", requests.Submission{
		Title:                  *title,
		Keyword:                *keyword,
		SourceURLs:             urls,
		WordCount:              requests.Count(*words),
		AdditionalInstructions: *instructions,
	})
	if err != nil {
		if verr, ok := validation.As(err); ok {
			pretty, _ := json.MarshalIndent(verr, "", "  ")
			exitErr(fmt.Sprintf("invalid request:\n%s", pretty))
		}
		exitErr(err.Error())
	}

	client, err := generation.New(generation.Options{
		Provider: *provider,
		Model:    *model,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Timeout:  cfg.GenerationTimeout,
		Sources:  sources.NewFetcher(cfg.SourceFetchTimeout),
	})
	if err != nil {
		exitErr(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.GenerationTimeout)
	defer cancel()

	out := output{Request: req}
	out.Structure, err = client.GenerateStructure(ctx, req)
	if err != nil {
		exitErr(describe("structure", err))
	}
	if err := out.Structure.CheckApprovable(); err != nil {
		exitErr(fmt.Sprintf("structure not approvable: %v", err))
	}
	out.Structure.Normalize()
	if !*structureOnly {
		article, err := client.GenerateArticle(ctx, out.Structure, req)
		if err != nil {
			exitErr(describe("article", err))
		}
		out.Article = &article
	}

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	pretty = append(pretty, '\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func describe(step string, err error) string {
	var gerr *generation.Error
	if errors.As(err, &gerr) {
		return fmt.Sprintf("%s generation failed (%s): %v", step, gerr.Kind, err)
	}
	return fmt.Sprintf("%s generation failed: %v", step, err)
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
