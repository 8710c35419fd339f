package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDeclined is the retryable failure: the customer may try again with the
// same or another method.
var ErrDeclined = errors.New("payment: declined")

type Receipt struct {
	Reference  string    `json:"reference"`
	Method     string    `json:"method"`
	Amount     int64     `json:"amount"`
	CapturedAt time.Time `json:"captured_at"`
}

// Processor charges the booking total. Amount correctness is the caller's
// concern; processors only succeed or decline.
type Processor interface {
	Charge(ctx context.Context, sessionID, method string, amount int64) (*Receipt, error)
}

// OfflineProcessor settles cash, UPI and wallet payments collected at the
// point of service. It records the charge and always succeeds.
type OfflineProcessor struct{}

func NewOfflineProcessor() *OfflineProcessor { return &OfflineProcessor{} }

func (p *OfflineProcessor) Charge(ctx context.Context, sessionID, method string, amount int64) (*Receipt, error) {
	return &Receipt{
		Reference:  "off_" + uuid.NewString(),
		Method:     method,
		Amount:     amount,
		CapturedAt: time.Now(),
	}, nil
}

// MethodRouter picks the processor by payment method: card charges go through
// the gateway, everything else settles offline.
type MethodRouter struct {
	card    Processor
	offline Processor
}

func NewMethodRouter(card, offline Processor) *MethodRouter {
	return &MethodRouter{card: card, offline: offline}
}

func (r *MethodRouter) Charge(ctx context.Context, sessionID, method string, amount int64) (*Receipt, error) {
	if method == "card" && r.card != nil {
		return r.card.Charge(ctx, sessionID, method, amount)
	}
	return r.offline.Charge(ctx, sessionID, method, amount)
}
