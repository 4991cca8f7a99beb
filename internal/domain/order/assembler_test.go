package order

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/marketplace/internal/domain/cart"
	"github.com/example/marketplace/internal/domain/catalog"
)

// mockRepository records created orders and can fail on demand.
type mockRepository struct {
	created   []*Order
	createErr error
}

func (m *mockRepository) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockRepository) Get(context.Context, string) (*Order, error) {
	return nil, ErrOrderNotFound
}

func (m *mockRepository) ListByUser(context.Context, string, int, int) ([]*Order, error) {
	return nil, nil
}

type mockNotifier struct {
	calls []string
	err   error
}

func (m *mockNotifier) OrderConfirmed(_ context.Context, o *Order, _ string) error {
	m.calls = append(m.calls, o.ID)
	return m.err
}

func testCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New()
	require.NoError(t, c.Add(catalog.Product{
		ID: "prod-1", Name: "Organic Tomatoes",
		Price: decimal.RequireFromString("10.00"),
		Stock: 10, Available: true, Unit: "kg",
	}, 3, false))
	return c
}

func TestAssembler_CreateOrder_EmptyCart(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{}
	a := NewAssembler(repo, notifier)

	o, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", cart.New())

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, o)
	assert.Empty(t, repo.created)
	assert.Empty(t, notifier.calls)
}

func TestAssembler_CreateOrder_Success(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{}
	a := NewAssembler(repo, notifier)
	c := testCart(t)
	wantTotal := c.TotalPrice()

	o, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", c)

	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "user-1", o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.True(t, o.TotalPrice.Equal(wantTotal))
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("30.00")))

	require.Len(t, o.Items, 1)
	item := o.Items[0]
	assert.Equal(t, o.ID, item.OrderID)
	assert.Equal(t, "prod-1", item.ProductID)
	assert.Equal(t, 3, item.Quantity)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, item.Total().Equal(decimal.RequireFromString("30.00")))

	// The source cart is emptied and the notification dispatched.
	assert.True(t, c.IsEmpty())
	assert.Equal(t, []string{o.ID}, notifier.calls)
	require.Len(t, repo.created, 1)
}

func TestAssembler_CreateOrder_StockConflictLeavesCartUntouched(t *testing.T) {
	repo := &mockRepository{createErr: ErrStockConflict}
	notifier := &mockNotifier{}
	a := NewAssembler(repo, notifier)
	c := testCart(t)

	o, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", c)

	assert.ErrorIs(t, err, ErrStockConflict)
	assert.Nil(t, o)
	assert.False(t, c.IsEmpty(), "cart must survive a failed order so the buyer can retry")
	assert.Equal(t, 3, c.Quantity("prod-1"))
	assert.Empty(t, notifier.calls)
}

func TestAssembler_CreateOrder_NotifierFailureDoesNotFailOrder(t *testing.T) {
	repo := &mockRepository{}
	notifier := &mockNotifier{err: errors.New("broker unreachable")}
	a := NewAssembler(repo, notifier)
	c := testCart(t)

	o, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", c)

	require.NoError(t, err)
	require.NotNil(t, o)
	assert.True(t, c.IsEmpty())
}

func TestAssembler_CreateOrder_NilNotifier(t *testing.T) {
	a := NewAssembler(&mockRepository{}, nil)

	_, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", testCart(t))

	require.NoError(t, err)
}

func TestAssembler_CreateOrder_TotalEqualsItemSum(t *testing.T) {
	repo := &mockRepository{}
	a := NewAssembler(repo, nil)

	c := cart.New()
	require.NoError(t, c.Add(catalog.Product{
		ID: "prod-1", Price: decimal.RequireFromString("10.00"),
		Stock: 10, Available: true,
	}, 3, false))
	require.NoError(t, c.Add(catalog.Product{
		ID: "prod-2", Price: decimal.RequireFromString("1.50"),
		Stock: 10, Available: true,
	}, 2, false))

	o, err := a.CreateOrder(context.Background(), "user-1", "buyer@example.com", c)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Total())
	}
	assert.True(t, o.TotalPrice.Equal(sum))
	assert.True(t, o.TotalPrice.Equal(decimal.RequireFromString("33.00")))
}
