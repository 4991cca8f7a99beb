package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/marketplace/internal/domain/catalog"
	"github.com/example/marketplace/internal/domain/order"
)

// OrderStore implements order.Repository on PostgreSQL.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create persists the order atomically. Each product row is locked
// with SELECT ... FOR UPDATE, revalidated with the same predicate used
// at add-time, and its stock decremented in place. Two checkouts
// racing for the same last unit serialize on the row lock, so exactly
// one commits; the loser aborts with ErrStockConflict and nothing is
// written.
func (s *OrderStore) Create(ctx context.Context, o *order.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range o.Items {
		var p catalog.Product
		err = tx.QueryRowContext(ctx, `
			SELECT id, name, price, stock_quantity, is_available, unit
			FROM products
			WHERE id = $1
			FOR UPDATE
		`, item.ProductID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Available, &p.Unit)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = fmt.Errorf("%w: product %s no longer exists", order.ErrStockConflict, item.ProductID)
			}
			return err
		}

		if allowErr := catalog.Allow(p, item.Quantity); allowErr != nil {
			err = fmt.Errorf("%w: %s: %v", order.ErrStockConflict, p.Name, allowErr)
			return err
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $1
			WHERE id = $2
		`, item.Quantity, item.ProductID); err != nil {
			return fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, is_paid, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.UserID, o.IsPaid, o.TotalPrice, string(o.Status), o.CreatedAt, o.UpdatedAt); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, o.ID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, is_paid, total_price, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.UserID, &o.IsPaid, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.Status = order.Status(status)

	if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, is_paid, total_price, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*order.Order, 0)
	for rows.Next() {
		var o order.Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.IsPaid, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o.Status = order.Status(status)
		if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// loadItems joins product names for display; an item whose product was
// deleted keeps an empty name.
func (s *OrderStore) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price
		FROM order_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.product_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]order.Item, 0)
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

var _ order.Repository = (*OrderStore)(nil)
