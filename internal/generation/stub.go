package generation

import (
	"context"
	"fmt"
	"strings"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
)

// Stub produces a deterministic outline and article without calling any
// provider. Used in dev and tests.
type Stub struct {
	// Fail, when set, is returned by every call.
	Fail error
}

func (s Stub) GenerateStructure(ctx context.Context, req requests.GenerationRequest) (content.StructurePayload, error) {
	if err := ctx.Err(); err != nil {
		return content.StructurePayload{}, wrap(ctx, "structure", err)
	}
	if s.Fail != nil {
		return content.StructurePayload{}, wrap(ctx, "structure", s.Fail)
	}
	kw := req.Keyword
	doc := structureDoc{Title: req.Title}
	for _, sec := range [][2]string{
		{"Introduction", fmt.Sprintf("Introduce %s and what the reader will learn.", kw)},
		{fmt.Sprintf("What is %s?", kw), fmt.Sprintf("Define %s in plain terms.", kw)},
		{fmt.Sprintf("Why %s matters", kw), "Explain the benefits with concrete examples."},
		{fmt.Sprintf("How to get started with %s", kw), "Walk through the first practical steps."},
		{"Common mistakes to avoid", "List frequent pitfalls and how to fix them."},
		{"Conclusion", "Summarize the key points and suggest a next step."},
	} {
		doc.Sections = append(doc.Sections, sectionDoc{Title: sec[0], Content: sec[1]})
	}
	return structureFromDoc(doc, req.Title)
}

func (s Stub) GenerateArticle(ctx context.Context, structure content.StructurePayload, req requests.GenerationRequest) (content.ArticlePayload, error) {
	if err := ctx.Err(); err != nil {
		return content.ArticlePayload{}, wrap(ctx, "article", err)
	}
	if s.Fail != nil {
		return content.ArticlePayload{}, wrap(ctx, "article", s.Fail)
	}
	var body strings.Builder
	for i, sec := range structure.Sections {
		if i > 0 {
			body.WriteString("\n\n")
		}
		fmt.Fprintf(&body, "## %s\n\n%s", sec.Title, sec.Content)
	}
	return articleFromDoc(articleDoc{
		Title:           structure.Title,
		MetaTitle:       structure.Title,
		MetaDescription: fmt.Sprintf("A practical guide to %s.", req.Keyword),
		Introduction:    fmt.Sprintf("This article covers %s.", req.Keyword),
		Body:            body.String(),
		Conclusion:      fmt.Sprintf("You now know the essentials of %s.", req.Keyword),
	}, req.Title)
}

var _ Client = Stub{}
