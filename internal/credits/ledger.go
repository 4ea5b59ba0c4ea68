package credits

import (
	"context"
	"errors"
	"strings"
	"time"

	"writer-backend/internal/shared/metrics"
	"writer-backend/internal/shared/telemetry"
)

// Reasons recorded on ledger events.
const (
	ReasonReserve  = "reserve"
	ReasonRelease  = "release"
	ReasonGrant    = "grant"
	ReasonPurchase = "purchase"
)

// Balance is a user's credit count after a ledger operation.
type Balance struct {
	UserID    string    `json:"userId"`
	Credits   int       `json:"credits"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store applies balance changes atomically. Debit takes exactly one credit
// and fails with ErrInsufficientCredits without mutation when none are left.
type Store interface {
	Debit(ctx context.Context, userID, reason, reference string) (Balance, error)
	Credit(ctx context.Context, userID string, amount int, reason, reference string) (Balance, error)
	Get(ctx context.Context, userID string) (Balance, error)
}

type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// Reserve consumes one credit for a generation request.
func (l *Ledger) Reserve(ctx context.Context, userID string) (Balance, error) {
	if strings.TrimSpace(userID) == "" {
		return Balance{}, ErrUserNotFound
	}
	bal, err := l.Store.Debit(ctx, userID, ReasonReserve, "")
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			metrics.IncCreditsInsufficient()
			telemetry.Info("credits.insufficient", map[string]any{"user_id": userID})
		}
		return Balance{}, err
	}
	metrics.IncCreditsReserved()
	telemetry.Info("credits.reserved", map[string]any{
		"user_id": userID,
		"balance": bal.Credits,
	})
	return bal, nil
}

// Release returns a reserved credit when admission did not complete.
func (l *Ledger) Release(ctx context.Context, userID, reference string) error {
	_, err := l.GrantFor(ctx, userID, 1, ReasonRelease, reference)
	return err
}

// Grant adds amount credits to the user's balance.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int) (Balance, error) {
	return l.GrantFor(ctx, userID, amount, ReasonGrant, "")
}

// GrantFor is Grant with an explicit audit reason and reference.
func (l *Ledger) GrantFor(ctx context.Context, userID string, amount int, reason, reference string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	if strings.TrimSpace(userID) == "" {
		return Balance{}, ErrUserNotFound
	}
	bal, err := l.Store.Credit(ctx, userID, amount, reason, reference)
	if err != nil {
		return Balance{}, err
	}
	metrics.AddCreditsGranted(amount)
	telemetry.Info("credits.granted", map[string]any{
		"user_id":   userID,
		"amount":    amount,
		"reason":    reason,
		"reference": reference,
		"balance":   bal.Credits,
	})
	return bal, nil
}

func (l *Ledger) Balance(ctx context.Context, userID string) (Balance, error) {
	return l.Store.Get(ctx, userID)
}
