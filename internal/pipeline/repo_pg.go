package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"writer-backend/internal/content"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const itemColumns = `id, user_id, stage, request, structure, article, last_error, attempt, revision,
	generation_started_at, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, item WorkItem) (WorkItem, error) {
	const query = `
INSERT INTO work_items (
	id, user_id, stage, request, structure, article, last_error, attempt, revision,
	generation_started_at, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $10, $10)
RETURNING revision, updated_at`
	request, err := json.Marshal(item.Request)
	if err != nil {
		return WorkItem{}, fmt.Errorf("encode request: %w", err)
	}
	structure, article, err := encodePayloads(item)
	if err != nil {
		return WorkItem{}, err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	err = r.DB.QueryRowContext(ctx, query,
		item.ID,
		item.UserID,
		string(item.Stage),
		request,
		structure,
		article,
		nullableText(item.LastError),
		item.Attempt,
		item.GenerationStartedAt,
		item.CreatedAt,
	).Scan(&item.Revision, &item.UpdatedAt)
	if err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

func (r *PGRepo) Get(ctx context.Context, id string) (WorkItem, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = $1`, id)
	return scanItem(row)
}

func (r *PGRepo) ListByOwner(ctx context.Context, userID string) ([]WorkItem, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM work_items WHERE user_id = $1 ORDER BY updated_at DESC, id`, userID)
}

func (r *PGRepo) ListAll(ctx context.Context, limit int) ([]WorkItem, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, `SELECT `+itemColumns+` FROM work_items ORDER BY updated_at DESC, id LIMIT $1`, limit)
}

func (r *PGRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]WorkItem, error) {
	return r.query(ctx, `
SELECT `+itemColumns+` FROM work_items
WHERE stage IN ('structure_pending', 'article_pending') AND generation_started_at < $1
ORDER BY generation_started_at`, cutoff)
}

func (r *PGRepo) Update(ctx context.Context, item WorkItem, expectedRevision int64) (WorkItem, error) {
	const query = `
UPDATE work_items SET
	stage = $3,
	structure = $4,
	article = $5,
	last_error = $6,
	attempt = $7,
	generation_started_at = $8,
	revision = revision + 1,
	updated_at = now()
WHERE id = $1 AND revision = $2
RETURNING revision, updated_at`
	structure, article, err := encodePayloads(item)
	if err != nil {
		return WorkItem{}, err
	}
	err = r.DB.QueryRowContext(ctx, query,
		item.ID,
		expectedRevision,
		string(item.Stage),
		structure,
		article,
		nullableText(item.LastError),
		item.Attempt,
		item.GenerationStartedAt,
	).Scan(&item.Revision, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists int
		probe := r.DB.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = $1`, item.ID).Scan(&exists)
		if errors.Is(probe, sql.ErrNoRows) {
			return WorkItem{}, ErrNotFound
		}
		if probe != nil {
			return WorkItem{}, probe
		}
		return WorkItem{}, ErrRevisionConflict
	}
	if err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]WorkItem, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]WorkItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (WorkItem, error) {
	var (
		item      WorkItem
		stage     string
		request   []byte
		structure []byte
		article   []byte
		lastError sql.NullString
		started   sql.NullTime
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&stage,
		&request,
		&structure,
		&article,
		&lastError,
		&item.Attempt,
		&item.Revision,
		&started,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorkItem{}, ErrNotFound
		}
		return WorkItem{}, err
	}
	item.Stage = Stage(stage)
	item.LastError = lastError.String
	if started.Valid {
		t := started.Time.UTC()
		item.GenerationStartedAt = &t
	}
	if err := json.Unmarshal(request, &item.Request); err != nil {
		return WorkItem{}, fmt.Errorf("decode request of %s: %w", item.ID, err)
	}
	if len(structure) > 0 {
		var s content.StructurePayload
		if err := json.Unmarshal(structure, &s); err != nil {
			return WorkItem{}, fmt.Errorf("decode structure of %s: %w", item.ID, err)
		}
		item.Structure = &s
	}
	if len(article) > 0 {
		var a content.ArticlePayload
		if err := json.Unmarshal(article, &a); err != nil {
			return WorkItem{}, fmt.Errorf("decode article of %s: %w", item.ID, err)
		}
		item.Article = &a
	}
	return item, nil
}

func encodePayloads(item WorkItem) (structure, article any, err error) {
	if item.Structure != nil {
		b, err := json.Marshal(item.Structure)
		if err != nil {
			return nil, nil, fmt.Errorf("encode structure: %w", err)
		}
		structure = b
	}
	if item.Article != nil {
		b, err := json.Marshal(item.Article)
		if err != nil {
			return nil, nil, fmt.Errorf("encode article: %w", err)
		}
		article = b
	}
	return structure, article, nil
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}
