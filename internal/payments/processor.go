package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrPayment marks a declined or failed charge. Its message is safe to show
// to the buyer.
var ErrPayment = errors.New("payment failed")

// Purchase describes one credit pack charge.
type Purchase struct {
	UserID          string
	Email           string
	PlanID          string
	AmountCents     int64
	Currency        string
	Credits         int
	PaymentMethodID string
}

// Receipt confirms a successful charge.
type Receipt struct {
	Reference      string `json:"reference"`
	CreditsGranted int    `json:"creditsGranted"`
}

// Processor charges a buyer for a credit pack.
type Processor interface {
	Purchase(ctx context.Context, p Purchase) (Receipt, error)
}

// Declined wraps a processor message as ErrPayment.
func Declined(message string) error {
	if message == "" {
		message = ErrPayment.Error()
	}
	return &declineError{msg: message}
}

// Message returns the buyer-facing part of a payment error.
func Message(err error) string {
	var d *declineError
	if errors.As(err, &d) {
		return d.msg
	}
	return ErrPayment.Error()
}

type declineError struct {
	msg string
}

func (e *declineError) Error() string { return e.msg }
func (e *declineError) Unwrap() error { return ErrPayment }

// DevProcessor approves every purchase. Only wired outside production.
type DevProcessor struct{}

func (DevProcessor) Purchase(ctx context.Context, p Purchase) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if p.PaymentMethodID == "" {
		return Receipt{}, &declineError{msg: "payment method is required"}
	}
	return Receipt{Reference: "dev_" + uuid.NewString(), CreditsGranted: p.Credits}, nil
}
