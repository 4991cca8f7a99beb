package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/order"
)

var minorUnitsPerMajor = decimal.NewFromInt(100)

// Broker opens provider checkout sessions for unpaid orders and
// records the pending payment before handing the session back, so a
// webhook racing the HTTP response still finds a row to match.
type Broker struct {
	orders   order.Repository
	payments Repository
	gateway  Gateway
}

func NewBroker(orders order.Repository, payments Repository, gateway Gateway) *Broker {
	return &Broker{orders: orders, payments: payments, gateway: gateway}
}

// CreateCheckoutSession opens a session for the order's full total,
// expressed in minor currency units, correlated by the order ID. The
// order must belong to userID and must not be paid yet. On provider
// failure the order stays pending and the caller may retry; a retry
// replaces the pending payment's session.
func (b *Broker) CreateCheckoutSession(ctx context.Context, orderID, userID string) (Session, error) {
	o, err := b.orders.Get(ctx, orderID)
	if err != nil {
		return Session{}, err
	}
	if o.UserID != userID {
		// Buyers cannot see other buyers' orders.
		return Session{}, order.ErrOrderNotFound
	}
	if o.IsPaid {
		return Session{}, ErrAlreadyPaid
	}

	amountMinor := o.TotalPrice.Mul(minorUnitsPerMajor).Round(0).IntPart()
	sess, err := b.gateway.CreateSession(ctx, amountMinor, o.ID)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}

	p := &Payment{
		ID:        uuid.New().String(),
		OrderID:   o.ID,
		SessionID: sess.ID,
		Amount:    o.TotalPrice,
		CreatedAt: time.Now(),
	}
	if err := b.payments.Upsert(ctx, p); err != nil {
		return Session{}, fmt.Errorf("record pending payment: %w", err)
	}

	return sess, nil
}
