package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Repo persists users.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// LinkGoogle returns the user bound to googleSub or to the same email,
	// creating fallback when neither exists.
	LinkGoogle(ctx context.Context, googleSub string, fallback User) (User, bool, error)
	SetRole(ctx context.Context, userID string, role Role) error
}
