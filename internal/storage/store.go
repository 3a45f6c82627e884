// Package storage persists order aggregates. The single SQL implementation
// speaks both PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite) through
// database/sql; every mutation is bracketed by an explicit transaction.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/omslab/order-service/pkg/models"
)

// ErrNotFound reports a by-id lookup miss.
var ErrNotFound = errors.New("order not found")

// ErrBadQuery reports a malformed ListQuery (unknown field, bad cursor).
// Callers surface it as a validation failure, not an infrastructure error.
var ErrBadQuery = errors.New("invalid query")

// Store is the persistence contract the handlers consume.
type Store interface {
	GetOrderWithItems(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, q ListQuery) (*Page, error)
	CountOrdersByYear(ctx context.Context, year int) (int, error)
	CountItemsForOrder(ctx context.Context, orderID string) (int, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id string) error
}

// Filter is a predicate tree. A node is either a leaf (Field/Op/Value) or
// a composite (And/Or); composites ignore leaf fields and vice versa.
type Filter struct {
	Field string
	Op    FilterOp
	Value string

	And []Filter
	Or  []Filter
}

type FilterOp string

const (
	OpEq       FilterOp = "eq"
	OpContains FilterOp = "contains"
)

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type SortKey struct {
	Field     string
	Direction SortDirection
}

// ListQuery is the explicit query-spec value object handed to the store.
// Cursor paging (After/Before) uses the fixed newest-first order; callers
// must not combine a cursor with custom Sort keys.
type ListQuery struct {
	Filter *Filter
	Sort   []SortKey
	Limit  int
	After  string
	Before string
}

// Page is one bounded slice of the result sequence.
type Page struct {
	Orders      []models.Order
	TotalCount  int
	StartCursor string
	EndCursor   string
	HasNext     bool
	HasPrev     bool
}

// cursor marks a keyset position in the (created_at, id) ordering.
type cursor struct {
	CreatedAt int64  `json:"c"`
	ID        string `json:"i"`
}

func encodeCursor(t time.Time, id string) string {
	raw, _ := json.Marshal(cursor{CreatedAt: t.UnixNano(), ID: id})
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor", ErrBadQuery)
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, fmt.Errorf("%w: malformed cursor", ErrBadQuery)
	}
	return c, nil
}
