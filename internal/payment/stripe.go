package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"

	"github.com/kaamwale/kaamwale-bookings/pkg/logger"
)

// StripeProcessor charges card payments through Stripe PaymentIntents.
// Amounts are already in minor currency units.
type StripeProcessor struct{}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	stripe.Key = secretKey
	return &StripeProcessor{}
}

func (p *StripeProcessor) Charge(ctx context.Context, sessionID, method string, amount int64) (*Receipt, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyINR)),
		Confirm:  stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("booking_session_id", sessionID)

	pi, err := paymentintent.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Type == stripe.ErrorTypeCard {
			logger.WarnContext(ctx, "Card declined", "session_id", sessionID, "code", stripeErr.Code)
			return nil, fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Code)
		}
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent status %s", ErrDeclined, pi.Status)
	}

	return &Receipt{
		Reference:  pi.ID,
		Method:     method,
		Amount:     amount,
		CapturedAt: time.Now(),
	}, nil
}
