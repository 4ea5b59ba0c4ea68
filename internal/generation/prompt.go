package generation

import (
	"fmt"
	"strings"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
	"writer-backend/internal/sources"
)

const structureSystem = `You are an SEO content strategist. You design article outlines.
Respond with a single JSON object and nothing else:
{"title": string, "sections": [{"title": string, "content": string}]}
"content" is a one or two sentence description of what the section covers.`

const articleSystem = `You are an SEO copywriter. You write complete articles from an approved outline.
Respond with a single JSON object and nothing else:
{"title": string, "metaTitle": string, "metaDescription": string, "introduction": string,
 "body": string, "conclusion": string}
"body" is Markdown with one "##" heading per outline section, in outline order.
"metaTitle" stays under 60 characters and "metaDescription" under 160.`

func structurePrompt(req requests.GenerationRequest, docs []sources.Document) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Working title: %s\n", req.Title)
	fmt.Fprintf(&b, "Primary keyword: %s\n", req.Keyword)
	fmt.Fprintf(&b, "Target length: about %d words\n", req.WordCount)
	writeInstructions(&b, req)
	writeSources(&b, docs)
	return structureSystem, b.String()
}

func articlePrompt(structure content.StructurePayload, req requests.GenerationRequest, docs []sources.Document) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", structure.Title)
	fmt.Fprintf(&b, "Primary keyword: %s\n", req.Keyword)
	fmt.Fprintf(&b, "Target length: about %d words\n", req.WordCount)
	b.WriteString("\nOutline:\n")
	for _, s := range structure.Sections {
		fmt.Fprintf(&b, "%d. %s", s.Position+1, s.Title)
		if s.Content != "" {
			fmt.Fprintf(&b, ": %s", s.Content)
		}
		b.WriteString("\n")
	}
	writeInstructions(&b, req)
	writeSources(&b, docs)
	return articleSystem, b.String()
}

func writeInstructions(b *strings.Builder, req requests.GenerationRequest) {
	if strings.TrimSpace(req.AdditionalInstructions) == "" {
		return
	}
	fmt.Fprintf(b, "\nAdditional instructions:\n%s\n", req.AdditionalInstructions)
}

func writeSources(b *strings.Builder, docs []sources.Document) {
	if len(docs) == 0 {
		return
	}
	b.WriteString("\nReference material (use facts, do not copy):\n")
	for i, d := range docs {
		fmt.Fprintf(b, "\n--- Source %d: %s ---\n%s\n", i+1, d.URL, d.Text)
	}
}
