package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, name, role, credits, password_hash, google_sub, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, role, credits, password_hash, google_sub, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		string(user.Role),
		user.Credits,
		nullableString(user.PasswordHash),
		nullableString(user.GoogleSub),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *PGRepo) LinkGoogle(ctx context.Context, googleSub string, fallback User) (User, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return User{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
SELECT `+userColumns+` FROM users
WHERE google_sub = $1 OR lower(email) = lower($2)
ORDER BY (google_sub = $1) DESC NULLS LAST
LIMIT 1
FOR UPDATE`, googleSub, fallback.Email)
	existing, scanErr := scanUser(row)
	switch {
	case scanErr == nil:
		if existing.GoogleSub == "" {
			if _, err = tx.ExecContext(ctx, `UPDATE users SET google_sub = $1, updated_at = now() WHERE id = $2`, googleSub, existing.ID); err != nil {
				return User{}, false, err
			}
			existing.GoogleSub = googleSub
		}
		if err = tx.Commit(); err != nil {
			return User{}, false, err
		}
		return existing, false, nil
	case errors.Is(scanErr, ErrNotFound):
	default:
		err = scanErr
		return User{}, false, err
	}

	fallback.GoogleSub = googleSub
	if _, err = tx.ExecContext(ctx, `
INSERT INTO users (id, email, name, role, credits, google_sub, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		fallback.ID, fallback.Email, fallback.Name, string(fallback.Role), fallback.Credits, googleSub); err != nil {
		return User{}, false, err
	}
	if err = tx.Commit(); err != nil {
		return User{}, false, err
	}
	return fallback, true, nil
}

func (r *PGRepo) SetRole(ctx context.Context, userID string, role Role) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, string(role), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u            User
		role         string
		passwordHash sql.NullString
		googleSub    sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Credits, &passwordHash, &googleSub, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = Role(role)
	u.PasswordHash = passwordHash.String
	u.GoogleSub = googleSub.String
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
