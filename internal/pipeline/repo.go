package pipeline

import (
	"context"
	"time"
)

// Repo persists WorkItems.
type Repo interface {
	Create(ctx context.Context, item WorkItem) (WorkItem, error)
	Get(ctx context.Context, id string) (WorkItem, error)
	ListByOwner(ctx context.Context, userID string) ([]WorkItem, error)
	ListAll(ctx context.Context, limit int) ([]WorkItem, error)
	// Update commits item if the stored revision equals expectedRevision and
	// returns it with the bumped revision. Otherwise ErrRevisionConflict.
	Update(ctx context.Context, item WorkItem, expectedRevision int64) (WorkItem, error)
	// ListPendingBefore returns pending items whose generation started
	// before cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]WorkItem, error)
}
