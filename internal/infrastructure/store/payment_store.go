package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/marketplace/internal/domain/order"
	"github.com/example/marketplace/internal/domain/payment"
)

// PaymentStore implements payment.Repository on PostgreSQL.
type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

// Upsert records a pending payment. One payment row per order: a retry
// after a provider error replaces the session on the existing row,
// abandoning the old session. A payment that already succeeded is
// never overwritten.
func (s *PaymentStore) Upsert(ctx context.Context, p *payment.Payment) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, external_session_id, amount, is_successful, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (order_id) DO UPDATE SET
			external_session_id = EXCLUDED.external_session_id,
			amount = EXCLUDED.amount,
			created_at = EXCLUDED.created_at
		WHERE NOT payments.is_successful
	`, p.ID, p.OrderID, p.SessionID, p.Amount, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return payment.ErrAlreadyPaid
	}
	return nil
}

func (s *PaymentStore) GetBySession(ctx context.Context, sessionID string) (*payment.Payment, error) {
	var p payment.Payment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, external_session_id, amount, is_successful, created_at
		FROM payments
		WHERE external_session_id = $1
	`, sessionID).Scan(&p.ID, &p.OrderID, &p.SessionID, &p.Amount, &p.Succeeded, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("select payment: %w", err)
	}
	return &p, nil
}

// MarkSucceeded flips the payment matching sessionID to successful and
// marks its order paid, in one transaction. The is_successful guard
// makes redelivered webhooks no-ops: the second UPDATE touches zero
// rows and we report applied=false without erroring.
func (s *PaymentStore) MarkSucceeded(ctx context.Context, sessionID string) (applied bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var orderID string
	err = tx.QueryRowContext(ctx, `
		UPDATE payments
		SET is_successful = TRUE
		WHERE external_session_id = $1
		  AND NOT is_successful
		RETURNING order_id
	`, sessionID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown session or already applied.
			err = tx.Rollback()
			return false, err
		}
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders
		SET is_paid = TRUE,
		    status = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, string(order.StatusProcessing), orderID); err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit payment transition: %w", err)
	}
	return true, nil
}

var _ payment.Repository = (*PaymentStore)(nil)
