package storage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/omslab/order-service/pkg/models"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitSchema(context.Background(), db))
	return NewSQLStore(db)
}

var seedBase = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// seedOrder inserts an order with a creation time offset by n minutes, so
// higher n means newer.
func seedOrder(t *testing.T, store *SQLStore, n int, name, email string, status models.OrderStatus) models.Order {
	t.Helper()

	created := seedBase.Add(time.Duration(n) * time.Minute)
	order := models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   fmt.Sprintf("ORD-%012d", n),
		CustomerName:  name,
		CustomerEmail: email,
		Status:        status,
		CreatedAt:     created,
		UpdatedAt:     created,
		Items: []models.OrderItem{
			{
				ID:          uuid.New().String(),
				ProductName: fmt.Sprintf("Product %d", n),
				Quantity:    1,
				UnitPrice:   10.00,
				Subtotal:    10.00,
				CreatedAt:   created,
			},
		},
	}
	order.Items[0].OrderID = order.ID
	order.RecomputeTotal()

	require.NoError(t, store.CreateOrder(context.Background(), &order))
	return order
}

func orderNumbers(orders []models.Order) []string {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.OrderNumber)
	}
	return out
}

func TestGetOrderWithItems(t *testing.T) {
	store := newTestStore(t)
	seeded := seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)

	got, err := store.GetOrderWithItems(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.OrderNumber, got.OrderNumber)
	assert.Equal(t, seeded.CreatedAt, got.CreatedAt)
	require.Len(t, got.Items, 1)
	assert.Equal(t, seeded.Items[0].ID, got.Items[0].ID)
}

func TestGetOrderWithItemsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetOrderWithItems(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemsComeBackInPositionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seedBase
	order := models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   "ORD-MULTI",
		CustomerName:  "John Doe",
		CustomerEmail: "john@example.com",
		Status:        models.StatusPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	for _, name := range []string{"first", "second", "third"} {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductName: name,
			Quantity:    1,
			UnitPrice:   1,
			Subtotal:    1,
			CreatedAt:   created,
		})
	}
	order.RecomputeTotal()
	require.NoError(t, store.CreateOrder(ctx, &order))

	got, err := store.GetOrderWithItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 3)
	assert.Equal(t, "first", got.Items[0].ProductName)
	assert.Equal(t, "second", got.Items[1].ProductName)
	assert.Equal(t, "third", got.Items[2].ProductName)
}

func TestUpdateOrderNotFound(t *testing.T) {
	store := newTestStore(t)

	order := models.Order{ID: uuid.New().String(), UpdatedAt: seedBase}
	assert.ErrorIs(t, store.UpdateOrder(context.Background(), &order), ErrNotFound)
}

func TestDeleteOrderNotFound(t *testing.T) {
	store := newTestStore(t)

	assert.ErrorIs(t, store.DeleteOrder(context.Background(), uuid.New().String()), ErrNotFound)
}

func TestDeleteOrderRemovesItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seeded := seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)

	require.NoError(t, store.DeleteOrder(ctx, seeded.ID))

	count, err := store.CountItemsForOrder(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountOrdersByYear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedOrder(t, store, 1, "A", "a@example.com", models.StatusPending)
	seedOrder(t, store, 2, "B", "b@example.com", models.StatusPending)

	count, err := store.CountOrdersByYear(ctx, seedBase.Year())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	empty, err := store.CountOrdersByYear(ctx, seedBase.Year()-1)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestListDefaultsToNewestFirst(t *testing.T) {
	store := newTestStore(t)

	for n := 1; n <= 3; n++ {
		seedOrder(t, store, n, "John Doe", "john@example.com", models.StatusPending)
	}

	page, err := store.ListOrders(context.Background(), ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, []string{"ORD-000000000003", "ORD-000000000002", "ORD-000000000001"}, orderNumbers(page.Orders))
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
	require.Len(t, page.Orders[0].Items, 1)
}

func TestListForwardPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for n := 1; n <= 5; n++ {
		seedOrder(t, store, n, "John Doe", "john@example.com", models.StatusPending)
	}

	first, err := store.ListOrders(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalCount)
	assert.Equal(t, []string{"ORD-000000000005", "ORD-000000000004"}, orderNumbers(first.Orders))
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrev)
	require.NotEmpty(t, first.EndCursor)

	second, err := store.ListOrders(ctx, ListQuery{Limit: 2, After: first.EndCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-000000000003", "ORD-000000000002"}, orderNumbers(second.Orders))
	assert.True(t, second.HasNext)
	assert.True(t, second.HasPrev)

	third, err := store.ListOrders(ctx, ListQuery{Limit: 2, After: second.EndCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-000000000001"}, orderNumbers(third.Orders))
	assert.False(t, third.HasNext)
	assert.True(t, third.HasPrev)
}

func TestListBackwardPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for n := 1; n <= 5; n++ {
		seedOrder(t, store, n, "John Doe", "john@example.com", models.StatusPending)
	}

	first, err := store.ListOrders(ctx, ListQuery{Limit: 2})
	require.NoError(t, err)
	second, err := store.ListOrders(ctx, ListQuery{Limit: 2, After: first.EndCursor})
	require.NoError(t, err)

	// Stepping back from the second page yields the first page again,
	// still presented newest-first.
	back, err := store.ListOrders(ctx, ListQuery{Limit: 2, Before: second.StartCursor})
	require.NoError(t, err)
	assert.Equal(t, orderNumbers(first.Orders), orderNumbers(back.Orders))
	assert.True(t, back.HasNext)
	assert.False(t, back.HasPrev)
}

func TestListFilterEq(t *testing.T) {
	store := newTestStore(t)

	seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)
	seedOrder(t, store, 2, "Jane Doe", "jane@example.com", models.StatusCompleted)
	seedOrder(t, store, 3, "Bob Smith", "bob@example.com", models.StatusPending)

	page, err := store.ListOrders(context.Background(), ListQuery{
		Filter: &Filter{Field: "status", Op: OpEq, Value: string(models.StatusPending)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, []string{"ORD-000000000003", "ORD-000000000001"}, orderNumbers(page.Orders))
}

func TestListFilterContainsIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)
	seedOrder(t, store, 2, "Jane Doe", "jane@example.com", models.StatusPending)
	seedOrder(t, store, 3, "Bob Smith", "bob@example.com", models.StatusPending)

	page, err := store.ListOrders(context.Background(), ListQuery{
		Filter: &Filter{Field: "customerName", Op: OpContains, Value: "DOE"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, []string{"ORD-000000000002", "ORD-000000000001"}, orderNumbers(page.Orders))
}

func TestListFilterComposite(t *testing.T) {
	store := newTestStore(t)

	seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)
	seedOrder(t, store, 2, "Jane Doe", "jane@example.com", models.StatusCompleted)
	seedOrder(t, store, 3, "Bob Smith", "bob@example.com", models.StatusPending)

	and, err := store.ListOrders(context.Background(), ListQuery{
		Filter: &Filter{And: []Filter{
			{Field: "customerName", Op: OpContains, Value: "Doe"},
			{Field: "status", Op: OpEq, Value: string(models.StatusPending)},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-000000000001"}, orderNumbers(and.Orders))

	or, err := store.ListOrders(context.Background(), ListQuery{
		Filter: &Filter{Or: []Filter{
			{Field: "customerName", Op: OpContains, Value: "Smith"},
			{Field: "status", Op: OpEq, Value: string(models.StatusCompleted)},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, or.TotalCount)
	assert.Equal(t, []string{"ORD-000000000003", "ORD-000000000002"}, orderNumbers(or.Orders))
}

func TestListCustomSort(t *testing.T) {
	store := newTestStore(t)

	seedOrder(t, store, 1, "Charlie", "c@example.com", models.StatusPending)
	seedOrder(t, store, 2, "Alice", "a@example.com", models.StatusPending)
	seedOrder(t, store, 3, "Bob", "b@example.com", models.StatusPending)

	page, err := store.ListOrders(context.Background(), ListQuery{
		Sort: []SortKey{{Field: "customerName", Direction: SortAsc}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ORD-000000000002", "ORD-000000000003", "ORD-000000000001"}, orderNumbers(page.Orders))
}

func TestListRejectsBadQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedOrder(t, store, 1, "John Doe", "john@example.com", models.StatusPending)

	tests := []struct {
		name string
		q    ListQuery
	}{
		{"unknown filter field", ListQuery{Filter: &Filter{Field: "secret", Op: OpEq, Value: "x"}}},
		{"unknown filter op", ListQuery{Filter: &Filter{Field: "status", Op: "gt", Value: "x"}}},
		{"unknown sort field", ListQuery{Sort: []SortKey{{Field: "secret", Direction: SortAsc}}}},
		{"malformed after cursor", ListQuery{After: "not-base64!!"}},
		{"malformed before cursor", ListQuery{Before: "not-base64!!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ListOrders(ctx, tt.q)
			assert.ErrorIs(t, err, ErrBadQuery)
		})
	}
}

func TestListClampsLimit(t *testing.T) {
	store := newTestStore(t)

	for n := 1; n <= 3; n++ {
		seedOrder(t, store, n, "John Doe", "john@example.com", models.StatusPending)
	}

	page, err := store.ListOrders(context.Background(), ListQuery{Limit: maxPageSize + 1})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 3)
	assert.False(t, page.HasNext)
}
