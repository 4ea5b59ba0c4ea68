package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var itemColumnNames = []string{
	"id", "user_id", "stage", "request", "structure", "article", "last_error", "attempt", "revision",
	"generation_started_at", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoGetDecodesPayloads(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(itemColumnNames).AddRow(
		"item-1", "user-1", "structure_ready",
		[]byte(`{"userId":"user-1","title":"SEO Basics Guide","keyword":"seo","sourceUrls":[],"wordCount":1200}`),
		[]byte(`{"title":"SEO Basics Guide","sections":[{"id":"s1","title":"Intro","position":0}]}`),
		nil, nil, 1, 3, nil, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM work_items WHERE id").WithArgs("item-1").WillReturnRows(rows)

	item, err := repo.Get(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Stage != StageStructureReady || item.Revision != 3 || item.Request.WordCount != 1200 {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Structure == nil || item.Structure.Sections[0].Title != "Intro" || item.Article != nil {
		t.Fatalf("unexpected payloads %+v %+v", item.Structure, item.Article)
	}
	if item.GenerationStartedAt != nil {
		t.Fatalf("expected nil generation start")
	}
}

func TestPGRepoGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT (.+) FROM work_items WHERE id").WithArgs("missing").WillReturnRows(sqlmock.NewRows(itemColumnNames))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoUpdateBumpsRevision(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("UPDATE work_items SET").
		WithArgs("item-1", int64(2), "structure_pending", nil, nil, nil, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision", "updated_at"}).AddRow(3, now))

	started := now
	item := WorkItem{ID: "item-1", Stage: StageStructurePending, Attempt: 1, GenerationStartedAt: &started}
	updated, err := repo.Update(context.Background(), item, 2)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Revision != 3 {
		t.Fatalf("expected revision 3, got %d", updated.Revision)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateDistinguishesConflictFromMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	item := WorkItem{ID: "item-1", Stage: StageDraft}

	mock.ExpectQuery("UPDATE work_items SET").WillReturnRows(sqlmock.NewRows([]string{"revision", "updated_at"}))
	mock.ExpectQuery("SELECT 1 FROM work_items").WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	if _, err := repo.Update(context.Background(), item, 5); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}

	mock.ExpectQuery("UPDATE work_items SET").WillReturnRows(sqlmock.NewRows([]string{"revision", "updated_at"}))
	mock.ExpectQuery("SELECT 1 FROM work_items").WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))
	if _, err := repo.Update(context.Background(), item, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListPendingBeforeFiltersPendingStages(t *testing.T) {
	repo, mock := newMockRepo(t)
	cutoff := time.Now().UTC()
	mock.ExpectQuery("stage IN \\('structure_pending', 'article_pending'\\)").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows(itemColumnNames))

	items, err := repo.ListPendingBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ListPendingBefore: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}
