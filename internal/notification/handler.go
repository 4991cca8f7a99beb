package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/email"
)

// Handler consumes queued confirmation messages and sends the email.
type Handler struct {
	emailService *email.Service
	orders       order.Repository
}

func NewHandler(emailSvc *email.Service, orders order.Repository) *Handler {
	return &Handler{
		emailService: emailSvc,
		orders:       orders,
	}
}

// HandleMessage processes one message from the queue. Delivery is
// at-least-once, so a crash after the email went out can produce a
// duplicate confirmation; that is the accepted trade-off.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	var msg Message
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Printf("[Notifier] Failed to unmarshal message %s: %v", string(key), err)
		return err
	}

	if msg.Email == "" {
		log.Printf("[Notifier] No buyer contact for order %s, skipping", msg.OrderID)
		return nil
	}

	o, err := h.orders.Get(ctx, msg.OrderID)
	if err != nil {
		log.Printf("[Notifier] Failed to load order %s: %v", msg.OrderID, err)
		return err
	}

	items := make([]email.OrderItem, len(o.Items))
	for i, item := range o.Items {
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	if err := h.emailService.SendOrderConfirmation(msg.Email, o.ID, o.TotalPrice, items); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", msg.Email, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation sent to %s for order %s", msg.Email, o.ID)
	return nil
}
