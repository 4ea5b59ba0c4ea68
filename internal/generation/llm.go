package generation

import (
	"context"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
	"writer-backend/internal/shared/telemetry"
	"writer-backend/internal/sources"
)

// SourceReader loads reference material for a request.
type SourceReader interface {
	FetchAll(ctx context.Context, urls []string) []sources.Document
}

// completer sends one system/user prompt pair and returns the model text.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
	provider() string
}

// promptClient adapts a completer to Client by building prompts and parsing
// the JSON answer.
type promptClient struct {
	llm     completer
	sources SourceReader
}

func (c *promptClient) GenerateStructure(ctx context.Context, req requests.GenerationRequest) (content.StructurePayload, error) {
	system, user := structurePrompt(req, c.fetch(ctx, req))
	text, err := c.llm.complete(ctx, system, user)
	if err != nil {
		return content.StructurePayload{}, wrap(ctx, "structure", err)
	}
	out, err := parseStructure(text, req.Title)
	if err != nil {
		c.logInvalid("structure", text, err)
		return content.StructurePayload{}, invalidOutput("structure", err)
	}
	return out, nil
}

func (c *promptClient) GenerateArticle(ctx context.Context, structure content.StructurePayload, req requests.GenerationRequest) (content.ArticlePayload, error) {
	system, user := articlePrompt(structure, req, c.fetch(ctx, req))
	text, err := c.llm.complete(ctx, system, user)
	if err != nil {
		return content.ArticlePayload{}, wrap(ctx, "article", err)
	}
	out, err := parseArticle(text, structure.Title)
	if err != nil {
		c.logInvalid("article", text, err)
		return content.ArticlePayload{}, invalidOutput("article", err)
	}
	return out, nil
}

func (c *promptClient) fetch(ctx context.Context, req requests.GenerationRequest) []sources.Document {
	if c.sources == nil || len(req.SourceURLs) == 0 {
		return nil
	}
	return c.sources.FetchAll(ctx, req.SourceURLs)
}

func (c *promptClient) logInvalid(op, text string, err error) {
	preview := text
	if len(preview) > 300 {
		preview = preview[:300]
	}
	telemetry.Warn("generation.invalid_output", map[string]any{
		"provider": c.llm.provider(),
		"op":       op,
		"error":    err,
		"preview":  preview,
	})
}
