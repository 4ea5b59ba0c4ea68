package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreDebitWritesEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits - 1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits", "updated_at"}).AddRow(4, now))
	mock.ExpectExec("INSERT INTO credit_events").
		WithArgs("user-1", -1, ReasonReserve, nil, 4).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := &PGStore{DB: db}
	bal, err := store.Debit(context.Background(), "user-1", ReasonReserve, "")
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if bal.Credits != 4 {
		t.Fatalf("expected 4, got %d", bal.Credits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreDebitEmptyBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits - 1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits", "updated_at"}))
	mock.ExpectQuery("SELECT 1 FROM users").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectRollback()

	store := &PGStore{DB: db}
	if _, err := store.Debit(context.Background(), "user-1", ReasonReserve, ""); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreCreditUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE users SET credits = credits \\+").
		WithArgs("ghost", 10).
		WillReturnRows(sqlmock.NewRows([]string{"credits", "updated_at"}))
	mock.ExpectQuery("SELECT 1 FROM users").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectRollback()

	store := &PGStore{DB: db}
	if _, err := store.Credit(context.Background(), "ghost", 10, ReasonGrant, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
