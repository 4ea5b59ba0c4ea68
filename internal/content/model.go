package content

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"writer-backend/internal/shared/validation"
)

// Section is one entry of an outline.
type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// StructurePayload is the outline of an article. Positions are dense 0..N-1
// and match slice order.
type StructurePayload struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// ArticleStatus is the editorial state carried in the article payload.
type ArticleStatus string

const (
	ArticleDraft     ArticleStatus = "draft"
	ArticleGenerated ArticleStatus = "generated"
	ArticlePublished ArticleStatus = "published"
)

// ArticlePayload is the full article. HTML is derived from the text fields.
type ArticlePayload struct {
	Title           string        `json:"title"`
	MetaTitle       string        `json:"metaTitle"`
	MetaDescription string        `json:"metaDescription"`
	Introduction    string        `json:"introduction"`
	Body            string        `json:"body"`
	Conclusion      string        `json:"conclusion"`
	HTML            string        `json:"html,omitempty"`
	Thumbnail       string        `json:"thumbnail,omitempty"`
	Status          ArticleStatus `json:"status"`
}

// Clone returns a deep copy.
func (p StructurePayload) Clone() StructurePayload {
	out := StructurePayload{Title: p.Title}
	if p.Sections != nil {
		out.Sections = append([]Section(nil), p.Sections...)
	}
	return out
}

// Normalize renumbers positions to slice order and gives every section a
// unique non-empty ID.
func (p *StructurePayload) Normalize() {
	seen := make(map[string]struct{}, len(p.Sections))
	for i := range p.Sections {
		p.Sections[i].Position = i
		id := p.Sections[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewString()
			p.Sections[i].ID = id
		}
		seen[id] = struct{}{}
	}
}

// CheckDense reports the first position or ID violation, if any.
func (p StructurePayload) CheckDense() error {
	seen := make(map[string]struct{}, len(p.Sections))
	for i, s := range p.Sections {
		if s.Position != i {
			return fmt.Errorf("section %d has position %d", i, s.Position)
		}
		if s.ID == "" {
			return fmt.Errorf("section %d has empty id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// IndexOf returns the slice index of the section with id, or -1.
func (p StructurePayload) IndexOf(id string) int {
	for i, s := range p.Sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// CheckApprovable reports why the outline cannot be approved: it needs at
// least one section and every section needs a title.
func (p StructurePayload) CheckApprovable() error {
	errs := &validation.Errors{}
	if len(p.Sections) == 0 {
		errs.Add("sections", "min", "at least one section is required")
	}
	for i, s := range p.Sections {
		if strings.TrimSpace(s.Title) == "" {
			errs.Add(fmt.Sprintf("sections[%d].title", i), "required", "is required")
		}
	}
	return errs.OrNil()
}
