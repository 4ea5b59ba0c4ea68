package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores WorkItems in process memory.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]WorkItem
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]WorkItem), now: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, item WorkItem) (WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return WorkItem{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	item.Revision = 1
	r.items[item.ID] = item.clone()
	return item.clone(), nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return WorkItem{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return WorkItem{}, ErrNotFound
	}
	return item.clone(), nil
}

func (r *MemoryRepo) ListByOwner(ctx context.Context, userID string) ([]WorkItem, error) {
	return r.list(ctx, func(w WorkItem) bool { return w.UserID == userID }, 0)
}

func (r *MemoryRepo) ListAll(ctx context.Context, limit int) ([]WorkItem, error) {
	return r.list(ctx, func(WorkItem) bool { return true }, limit)
}

func (r *MemoryRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]WorkItem, error) {
	return r.list(ctx, func(w WorkItem) bool {
		return IsPending(w.Stage) && w.GenerationStartedAt != nil && w.GenerationStartedAt.Before(cutoff)
	}, 0)
}

func (r *MemoryRepo) Update(ctx context.Context, item WorkItem, expectedRevision int64) (WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return WorkItem{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[item.ID]
	if !ok {
		return WorkItem{}, ErrNotFound
	}
	if current.Revision != expectedRevision {
		return WorkItem{}, ErrRevisionConflict
	}
	item.UserID = current.UserID
	item.Request = current.Request
	item.CreatedAt = current.CreatedAt
	item.Revision = current.Revision + 1
	item.UpdatedAt = r.now().UTC()
	r.items[item.ID] = item.clone()
	return item.clone(), nil
}

func (r *MemoryRepo) list(ctx context.Context, keep func(WorkItem) bool, limit int) ([]WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]WorkItem, 0)
	for _, item := range r.items {
		if keep(item) {
			out = append(out, item.clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
