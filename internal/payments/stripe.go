package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"writer-backend/internal/shared/telemetry"
)

// StripeProcessor charges through a confirmed PaymentIntent.
type StripeProcessor struct {
	Currency string

	newIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func NewStripeProcessor(secretKey, currency string) *StripeProcessor {
	stripe.Key = secretKey
	if currency == "" {
		currency = string(stripe.CurrencyEUR)
	}
	return &StripeProcessor{Currency: strings.ToLower(currency), newIntent: paymentintent.New}
}

func (s *StripeProcessor) Purchase(ctx context.Context, p Purchase) (Receipt, error) {
	if p.PaymentMethodID == "" {
		return Receipt{}, &declineError{msg: "payment method is required"}
	}
	currency := p.Currency
	if currency == "" {
		currency = s.Currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(p.AmountCents),
		Currency:           stripe.String(currency),
		PaymentMethod:      stripe.String(p.PaymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	if p.Email != "" {
		params.ReceiptEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata("user_id", p.UserID)
	params.AddMetadata("plan_id", p.PlanID)

	intent, err := s.newIntent(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			telemetry.Warn("payments.declined", map[string]any{
				"user_id": p.UserID,
				"plan_id": p.PlanID,
				"code":    string(stripeErr.Code),
			})
			return Receipt{}, &declineError{msg: stripeErr.Msg}
		}
		return Receipt{}, err
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return Receipt{}, &declineError{msg: "payment was not completed (status " + string(intent.Status) + ")"}
	}
	return Receipt{Reference: intent.ID, CreditsGranted: p.Credits}, nil
}
