package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepo keeps users in process memory. It also serves as the account
// store of the in-memory credit ledger.
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User), now: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTakenLocked(user.Email) {
		return ErrDuplicateEmail
	}
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) LinkGoogle(ctx context.Context, googleSub string, fallback User) (User, bool, error) {
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.GoogleSub == googleSub || strings.EqualFold(u.Email, fallback.Email) {
			if u.GoogleSub == "" {
				u.GoogleSub = googleSub
				u.UpdatedAt = r.now().UTC()
				r.users[id] = u
			}
			return u, false, nil
		}
	}
	now := r.now().UTC()
	fallback.GoogleSub = googleSub
	fallback.CreatedAt = now
	fallback.UpdatedAt = now
	r.users[fallback.ID] = fallback
	return fallback, true, nil
}

func (r *MemoryRepo) SetRole(ctx context.Context, userID string, role Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = r.now().UTC()
	r.users[userID] = u
	return nil
}

// MutateCredits applies fn to the user's balance under the repo lock. fn
// returns the new balance or an error that aborts without mutation.
func (r *MemoryRepo) MutateCredits(ctx context.Context, userID string, fn func(current int) (int, error)) (int, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return 0, time.Time{}, ErrNotFound
	}
	next, err := fn(u.Credits)
	if err != nil {
		return u.Credits, u.UpdatedAt, err
	}
	u.Credits = next
	u.UpdatedAt = r.now().UTC()
	r.users[userID] = u
	return u.Credits, u.UpdatedAt, nil
}

func (r *MemoryRepo) emailTakenLocked(email string) bool {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}
