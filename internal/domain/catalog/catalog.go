package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrProductUnavailable = errors.New("product is not available")
	ErrInsufficientStock  = errors.New("insufficient stock")
)

// Product is the read-only view of a catalog entry that the cart and
// order pipeline need. Product management itself lives outside this
// service.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Available bool            `json:"available"`
	Unit      string          `json:"unit"` // display unit: kg, pcs, bunch, ...
}

// Catalog resolves products for cart display and stock checks.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Allow reports whether quantity units of p may be committed. It is a
// pure predicate: callers re-run it at add-time and again inside the
// order transaction, because stock may change between the two.
func Allow(p Product, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.Available {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
	}
	if quantity > p.Stock {
		return fmt.Errorf("%w: only %d %s available", ErrInsufficientStock, p.Stock, p.Unit)
	}
	return nil
}
