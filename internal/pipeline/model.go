package pipeline

import (
	"time"

	"writer-backend/internal/content"
	"writer-backend/internal/requests"
)

// WorkItem is the unit of work tracked through the pipeline. Request is
// immutable after creation. Revision increases on every committed change and
// serves as the optimistic concurrency marker.
type WorkItem struct {
	ID                  string                     `json:"id"`
	UserID              string                     `json:"userId"`
	Stage               Stage                      `json:"stage"`
	Request             requests.GenerationRequest `json:"request"`
	Structure           *content.StructurePayload  `json:"structure,omitempty"`
	Article             *content.ArticlePayload    `json:"article,omitempty"`
	LastError           string                     `json:"lastError,omitempty"`
	Attempt             int                        `json:"attempt"`
	Revision            int64                      `json:"revision"`
	GenerationStartedAt *time.Time                 `json:"generationStartedAt,omitempty"`
	CreatedAt           time.Time                  `json:"createdAt"`
	UpdatedAt           time.Time                  `json:"updatedAt"`
}

// Role values carried by an Actor.
const (
	RoleStandard = "standard"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanRead reports whether a may read item.
func (a Actor) CanRead(item WorkItem) bool {
	return a.UserID != "" && (item.UserID == a.UserID || a.IsAdmin())
}

// CanWrite reports whether a may mutate item. Only the owner may.
func (a Actor) CanWrite(item WorkItem) bool {
	return a.UserID != "" && item.UserID == a.UserID
}

// clone deep-copies the payload pointers so callers cannot alias stored state.
func (w WorkItem) clone() WorkItem {
	if w.Structure != nil {
		s := w.Structure.Clone()
		w.Structure = &s
	}
	if w.Article != nil {
		a := *w.Article
		w.Article = &a
	}
	if w.GenerationStartedAt != nil {
		t := *w.GenerationStartedAt
		w.GenerationStartedAt = &t
	}
	w.Request.SourceURLs = append([]string(nil), w.Request.SourceURLs...)
	return w
}
