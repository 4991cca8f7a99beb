package notification

import (
	"context"
	"fmt"

	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/metrics"
)

// Message is the contract the notification queue accepts. The worker
// re-reads order details from the database, so the message only needs
// to identify the order and where to reach the buyer.
type Message struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
}

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, key string, message any) error
}

// Dispatcher enqueues order-confirmation messages. It implements
// order.Notifier; the assembler treats a failed dispatch as
// log-and-continue, so the queue being down never blocks checkout.
type Dispatcher struct {
	producer Publisher
}

func NewDispatcher(producer Publisher) *Dispatcher {
	return &Dispatcher{producer: producer}
}

func (d *Dispatcher) OrderConfirmed(ctx context.Context, o *order.Order, buyerEmail string) error {
	msg := Message{
		OrderID: o.ID,
		UserID:  o.UserID,
		Email:   buyerEmail,
	}
	if err := d.producer.Publish(ctx, o.ID, msg); err != nil {
		metrics.NotificationsFailed.Inc()
		return fmt.Errorf("publish order confirmation: %w", err)
	}
	metrics.NotificationsPublished.Inc()
	return nil
}

var _ order.Notifier = (*Dispatcher)(nil)
