package cart

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/example/marketplace/internal/domain/catalog"
)

// Line is one product's pending quantity in a buyer's cart. UnitPrice
// is snapshotted when the line is first created so the displayed total
// stays stable between catalog price changes and checkout.
type Line struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart holds a buyer's pending line items keyed by product ID. It is
// plain session state; persistence and per-session locking live in the
// session store.
type Cart struct {
	Items map[string]Line `json:"items"`
}

func New() *Cart {
	return &Cart{Items: make(map[string]Line)}
}

// Add puts quantity units of p into the cart, or replaces the line's
// quantity when override is set. The target quantity is revalidated
// against current stock before the cart is touched, so a rejected add
// leaves the cart unchanged.
func (c *Cart) Add(p catalog.Product, quantity int, override bool) error {
	target := quantity
	if !override {
		if line, ok := c.Items[p.ID]; ok {
			target += line.Quantity
		}
	}

	if err := catalog.Allow(p, target); err != nil {
		return err
	}

	line, ok := c.Items[p.ID]
	if !ok {
		line = Line{ProductID: p.ID, UnitPrice: p.Price}
	}
	line.Quantity = target
	c.Items[p.ID] = line
	return nil
}

// Remove deletes the product's line. It reports whether the line was
// present.
func (c *Cart) Remove(productID string) bool {
	if _, ok := c.Items[productID]; !ok {
		return false
	}
	delete(c.Items, productID)
	return true
}

// Quantity returns the pending quantity for a product, zero if absent.
func (c *Cart) Quantity(productID string) int {
	return c.Items[productID].Quantity
}

// Len returns the total number of units across all lines.
func (c *Cart) Len() int {
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalPrice sums all line totals using the cart's snapshot prices,
// not current catalog prices.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Items {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

// Clear empties the cart. Idempotent.
func (c *Cart) Clear() {
	c.Items = make(map[string]Line)
}

// LineView is a cart line resolved against the catalog for display.
type LineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"total_price"`
}

// Lines resolves every cart line against the catalog. A line whose
// product no longer exists is still reported, with an empty name and a
// zero line total, rather than failing the whole listing. Output is
// ordered by product ID for stable responses.
func (c *Cart) Lines(ctx context.Context, cat catalog.Catalog) []LineView {
	views := make([]LineView, 0, len(c.Items))
	for id, line := range c.Items {
		view := LineView{
			ProductID: id,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: decimal.Zero,
		}
		if p, err := cat.GetProduct(ctx, id); err == nil {
			view.Name = p.Name
			view.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ProductID < views[j].ProductID })
	return views
}
