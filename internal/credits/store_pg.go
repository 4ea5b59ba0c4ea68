package credits

import (
	"context"
	"database/sql"
	"errors"
)

// PGStore keeps balances on the users row and appends credit_events in the
// same transaction.
type PGStore struct {
	DB *sql.DB
}

const (
	debitQuery = `
UPDATE users SET credits = credits - 1, updated_at = now()
WHERE id = $1 AND credits >= 1
RETURNING credits, updated_at`
	creditQuery = `
UPDATE users SET credits = credits + $2, updated_at = now()
WHERE id = $1
RETURNING credits, updated_at`
	insertEvent = `
INSERT INTO credit_events (user_id, delta, reason, reference, balance)
VALUES ($1, $2, $3, $4, $5)`
)

func (s *PGStore) Debit(ctx context.Context, userID, reason, reference string) (Balance, error) {
	return s.apply(ctx, userID, -1, reason, reference, debitQuery, userID)
}

func (s *PGStore) Credit(ctx context.Context, userID string, amount int, reason, reference string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return s.apply(ctx, userID, amount, reason, reference, creditQuery, userID, amount)
}

func (s *PGStore) Get(ctx context.Context, userID string) (Balance, error) {
	bal := Balance{UserID: userID}
	err := s.DB.QueryRowContext(ctx, `SELECT credits, updated_at FROM users WHERE id = $1`, userID).
		Scan(&bal.Credits, &bal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{}, ErrUserNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	return bal, nil
}

func (s *PGStore) apply(ctx context.Context, userID string, delta int, reason, reference, query string, args ...any) (bal Balance, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	bal.UserID = userID
	err = tx.QueryRowContext(ctx, query, args...).Scan(&bal.Credits, &bal.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = missingOrEmpty(ctx, tx, userID)
		return Balance{}, err
	}
	if err != nil {
		return Balance{}, err
	}

	if _, err = tx.ExecContext(ctx, insertEvent, userID, delta, reason, nullable(reference), bal.Credits); err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return bal, nil
}

// missingOrEmpty distinguishes an unknown user from an empty balance after a
// conditional update matched no row.
func missingOrEmpty(ctx context.Context, tx *sql.Tx, userID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	return ErrInsufficientCredits
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
