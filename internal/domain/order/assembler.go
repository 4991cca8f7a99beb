package order

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/marketplace/internal/domain/cart"
	"github.com/example/marketplace/internal/metrics"
)

// Notifier enqueues the order-confirmation message. Dispatch is
// fire-and-forget: the assembler logs failures and never lets them
// affect the order result.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *Order, buyerEmail string) error
}

// Assembler drains a validated cart into an immutable order.
type Assembler struct {
	orders   Repository
	notifier Notifier
}

func NewAssembler(orders Repository, notifier Notifier) *Assembler {
	return &Assembler{orders: orders, notifier: notifier}
}

// CreateOrder converts the cart into a persisted order. Stock is
// re-validated and decremented inside the repository transaction; on
// any failure before commit the cart is left untouched so the buyer
// can retry. On success the cart is emptied and the confirmation
// notification is dispatched outside the transaction.
func (a *Assembler) CreateOrder(ctx context.Context, userID, buyerEmail string, c *cart.Cart) (*Order, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	now := time.Now()
	o := &Order{
		ID:         uuid.New().String(),
		UserID:     userID,
		Status:     StatusPending,
		TotalPrice: c.TotalPrice(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, line := range c.Items {
		o.Items = append(o.Items, Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	if err := a.orders.Create(ctx, o); err != nil {
		if errors.Is(err, ErrStockConflict) {
			metrics.OrderStockConflicts.Inc()
		}
		return nil, err
	}
	metrics.OrdersCreated.Inc()

	c.Clear()

	if a.notifier != nil {
		if err := a.notifier.OrderConfirmed(ctx, o, buyerEmail); err != nil {
			log.Printf("[Order] Failed to dispatch confirmation for order %s: %v", o.ID, err)
		}
	}

	return o, nil
}
