package editor

import (
	"fmt"
	"time"

	"writer-backend/internal/content"
)

// ArticleSession holds an article being edited together with the item
// revision it was opened at.
type ArticleSession struct {
	ID        string                 `json:"id"`
	ItemID    string                 `json:"itemId"`
	UserID    string                 `json:"userId"`
	Revision  int64                  `json:"revision"`
	Version   int64                  `json:"version"`
	Payload   content.ArticlePayload `json:"payload"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// ArticleFields lists the fields accepted by EditField.
var ArticleFields = []string{"title", "metaTitle", "metaDescription", "introduction", "body", "conclusion", "thumbnail"}

func (s *ArticleSession) EditField(field, value string) error {
	p := &s.Payload
	switch field {
	case "title":
		p.Title = value
	case "metaTitle":
		p.MetaTitle = value
	case "metaDescription":
		p.MetaDescription = value
	case "introduction":
		p.Introduction = value
	case "body":
		p.Body = value
	case "conclusion":
		p.Conclusion = value
	case "thumbnail":
		p.Thumbnail = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, field)
	}
	return nil
}
