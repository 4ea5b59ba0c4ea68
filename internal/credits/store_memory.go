package credits

import (
	"context"
	"errors"
	"sync"
	"time"

	"writer-backend/internal/users"
)

// accountRepo is the user store holding the authoritative balance.
type accountRepo interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
	MutateCredits(ctx context.Context, userID string, fn func(current int) (int, error)) (int, time.Time, error)
}

// Event is one audited balance change.
type Event struct {
	UserID    string
	Delta     int
	Reason    string
	Reference string
	Balance   int
	At        time.Time
}

// MemoryStore mutates balances held by an in-memory user repo.
type MemoryStore struct {
	accounts accountRepo

	mu     sync.Mutex
	events []Event
}

func NewMemoryStore(accounts accountRepo) *MemoryStore {
	return &MemoryStore{accounts: accounts}
}

func (s *MemoryStore) Debit(ctx context.Context, userID, reason, reference string) (Balance, error) {
	return s.apply(ctx, userID, -1, reason, reference)
}

func (s *MemoryStore) Credit(ctx context.Context, userID string, amount int, reason, reference string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return s.apply(ctx, userID, amount, reason, reference)
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Balance, error) {
	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return Balance{}, mapUserErr(err)
	}
	return Balance{UserID: userID, Credits: user.Credits, UpdatedAt: user.UpdatedAt}, nil
}

// Events returns the audit trail for userID, oldest first.
func (s *MemoryStore) Events(userID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0)
	for _, ev := range s.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}

func (s *MemoryStore) apply(ctx context.Context, userID string, delta int, reason, reference string) (Balance, error) {
	credits, updated, err := s.accounts.MutateCredits(ctx, userID, func(current int) (int, error) {
		if current+delta < 0 {
			return current, ErrInsufficientCredits
		}
		return current + delta, nil
	})
	if err != nil {
		return Balance{}, mapUserErr(err)
	}
	s.mu.Lock()
	s.events = append(s.events, Event{
		UserID:    userID,
		Delta:     delta,
		Reason:    reason,
		Reference: reference,
		Balance:   credits,
		At:        updated,
	})
	s.mu.Unlock()
	return Balance{UserID: userID, Credits: credits, UpdatedAt: updated}, nil
}

func mapUserErr(err error) error {
	if errors.Is(err, users.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
