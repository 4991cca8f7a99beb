package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyPaid     = errors.New("order has already been paid")
	ErrPaymentNotFound = errors.New("payment not found")
)

// Payment tracks one order's checkout session. One payment row per
// order; retrying after a provider error replaces the session on the
// existing row and abandons the old session.
type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	SessionID string          `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	Succeeded bool            `json:"is_successful"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository persists payments. MarkSucceeded applies the single legal
// transition pending -> succeeded for the payment matching sessionID
// and marks the linked order paid, in one transaction. It reports
// whether the transition was applied; an unknown session or an already
// successful payment is a no-op, which makes webhook redelivery safe.
type Repository interface {
	Upsert(ctx context.Context, p *Payment) error
	GetBySession(ctx context.Context, sessionID string) (*Payment, error)
	MarkSucceeded(ctx context.Context, sessionID string) (bool, error)
}

// Session is the provider's representation of a pending payment.
type Session struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// Event is a verified provider webhook event.
type Event struct {
	Type          string
	SessionID     string
	CorrelationID string
}

// EventCheckoutCompleted is the only event kind the reconciler acts
// on; everything else is acknowledged and ignored.
const EventCheckoutCompleted = "checkout.session.completed"

// Gateway is the contract the core needs from the payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, amountMinor int64, correlationID string) (Session, error)
	VerifyAndParse(payload []byte, signature string) (Event, error)
}
