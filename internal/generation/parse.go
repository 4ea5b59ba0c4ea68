package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"writer-backend/internal/content"
)

type structureDoc struct {
	Title    string       `json:"title"`
	Sections []sectionDoc `json:"sections"`
}

type sectionDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type articleDoc struct {
	Title           string `json:"title"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	Introduction    string `json:"introduction"`
	Body            string `json:"body"`
	Conclusion      string `json:"conclusion"`
	Thumbnail       string `json:"thumbnail"`
}

// extractJSON returns the outermost JSON object in model text, tolerating
// Markdown code fences and prose around it.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object in output")
	}
	return text[start : end+1], nil
}

func parseStructure(text, fallbackTitle string) (content.StructurePayload, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return content.StructurePayload{}, err
	}
	var doc structureDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return content.StructurePayload{}, fmt.Errorf("decode structure: %w", err)
	}
	return structureFromDoc(doc, fallbackTitle)
}

func structureFromDoc(doc structureDoc, fallbackTitle string) (content.StructurePayload, error) {
	out := content.StructurePayload{Title: strings.TrimSpace(doc.Title)}
	if out.Title == "" {
		out.Title = fallbackTitle
	}
	for _, s := range doc.Sections {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			continue
		}
		out.Sections = append(out.Sections, content.Section{Title: title, Content: strings.TrimSpace(s.Content)})
	}
	if len(out.Sections) == 0 {
		return content.StructurePayload{}, errors.New("structure has no sections")
	}
	out.Normalize()
	return out, nil
}

func parseArticle(text, fallbackTitle string) (content.ArticlePayload, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return content.ArticlePayload{}, err
	}
	var doc articleDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return content.ArticlePayload{}, fmt.Errorf("decode article: %w", err)
	}
	return articleFromDoc(doc, fallbackTitle)
}

func articleFromDoc(doc articleDoc, fallbackTitle string) (content.ArticlePayload, error) {
	out := content.ArticlePayload{
		Title:           strings.TrimSpace(doc.Title),
		MetaTitle:       strings.TrimSpace(doc.MetaTitle),
		MetaDescription: strings.TrimSpace(doc.MetaDescription),
		Introduction:    strings.TrimSpace(doc.Introduction),
		Body:            strings.TrimSpace(doc.Body),
		Conclusion:      strings.TrimSpace(doc.Conclusion),
		Thumbnail:       strings.TrimSpace(doc.Thumbnail),
		Status:          content.ArticleGenerated,
	}
	if out.Title == "" {
		out.Title = fallbackTitle
	}
	if out.Body == "" {
		return content.ArticlePayload{}, errors.New("article body is empty")
	}
	if out.MetaTitle == "" {
		out.MetaTitle = out.Title
	}
	return out, nil
}
