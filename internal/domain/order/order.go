package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrStockConflict = errors.New("stock changed since the item was added")
)

// Item is one immutable order line. UnitPrice is copied from the cart
// snapshot, so historical orders are decoupled from later catalog
// price changes.
type Item struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Total returns the line total for this item.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the immutable record assembled from a cart. Its item set
// never changes after creation; the only legal mutation afterwards is
// the paid transition driven by webhook reconciliation.
type Order struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	IsPaid     bool            `json:"is_paid"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     Status          `json:"status"`
	Items      []Item          `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Repository persists orders. Create must be atomic: it revalidates
// and decrements stock for every item under row locks, then inserts
// the order and its items, all in one transaction. A stock shortfall
// on any line aborts the whole order with ErrStockConflict.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, error)
}
