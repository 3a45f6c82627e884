package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/omslab/order-service/pkg/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Wire field names → columns. Doubles as the filter/sort whitelist.
var columnForField = map[string]string{
	"orderNumber":   "order_number",
	"customerName":  "customer_name",
	"customerEmail": "customer_email",
	"status":        "status",
	"createdAt":     "created_at",
	"totalAmount":   "total_amount",
}

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) GetOrderWithItems(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, `
		SELECT id, order_number, customer_name, customer_email, status, total_amount, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]
	if order.Items == nil {
		order.Items = []models.OrderItem{}
	}
	return order, nil
}

func (s *SQLStore) CountOrdersByYear(ctx context.Context, year int) (int, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	to := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixNano()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders by year: %w", err)
	}
	return count, nil
}

func (s *SQLStore) CountItemsForOrder(ctx context.Context, orderID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM order_items WHERE order_id = $1
	`, orderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

func (s *SQLStore) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_name, customer_email, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.OrderNumber, order.CustomerName, order.CustomerEmail,
		string(order.Status), order.TotalAmount, order.CreatedAt.UnixNano(), order.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		if err := upsertItem(ctx, tx, item, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) UpdateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_name = $1, customer_email = $2, status = $3, total_amount = $4, updated_at = $5
		WHERE id = $6
	`, order.CustomerName, order.CustomerEmail, string(order.Status),
		order.TotalAmount, order.UpdatedAt.UnixNano(), order.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	// Drop rows that did not survive the positional diff, then upsert the
	// survivors in list order.
	kept := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		kept = append(kept, item.ID)
	}
	if len(kept) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
	} else {
		placeholders := make([]string, len(kept))
		args := make([]any, 0, len(kept)+1)
		args = append(args, order.ID)
		for i, id := range kept {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, id)
		}
		query := fmt.Sprintf(`DELETE FROM order_items WHERE order_id = $1 AND id NOT IN (%s)`,
			strings.Join(placeholders, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
	}

	for i, item := range order.Items {
		if err := upsertItem(ctx, tx, item, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) DeleteOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Items first, then the order row. Deletion does not lean on any
	// cascade behavior of the underlying database.
	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (s *SQLStore) ListOrders(ctx context.Context, q ListQuery) (*Page, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	where, args, err := buildFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM orders`
	if where != "" {
		countQuery += " WHERE " + where
	}
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	backward := q.Before != ""
	conds := make([]string, 0, 2)
	if where != "" {
		conds = append(conds, where)
	}
	n := len(args)
	switch {
	case q.After != "":
		c, err := decodeCursor(q.After)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", n+1, n+2))
		args = append(args, c.CreatedAt, c.ID)
	case q.Before != "":
		c, err := decodeCursor(q.Before)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("(created_at, id) > ($%d, $%d)", n+1, n+2))
		args = append(args, c.CreatedAt, c.ID)
	}

	orderBy, err := buildOrderBy(q.Sort, backward)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, order_number, customer_name, customer_email, status, total_amount, created_at, updated_at FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy
	query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	more := len(orders) > limit
	if more {
		orders = orders[:limit]
	}
	if backward {
		// Rows were fetched ascending from the cursor; present newest-first.
		for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
			orders[i], orders[j] = orders[j], orders[i]
		}
	}

	page := &Page{
		Orders:     orders,
		TotalCount: total,
		HasNext:    (!backward && more) || backward,
		HasPrev:    (backward && more) || q.After != "",
	}

	if len(orders) > 0 {
		ids := make([]string, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
		}
		itemsByOrder, err := s.loadItems(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range orders {
			orders[i].Items = itemsByOrder[orders[i].ID]
			if orders[i].Items == nil {
				orders[i].Items = []models.OrderItem{}
			}
		}
		page.StartCursor = encodeCursor(orders[0].CreatedAt, orders[0].ID)
		page.EndCursor = encodeCursor(orders[len(orders)-1].CreatedAt, orders[len(orders)-1].ID)
	}

	return page, nil
}

func upsertItem(ctx context.Context, tx *sql.Tx, item models.OrderItem, position int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_items (id, order_id, product_name, quantity, unit_price, subtotal, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			product_name = excluded.product_name,
			quantity = excluded.quantity,
			unit_price = excluded.unit_price,
			subtotal = excluded.subtotal,
			position = excluded.position
	`, item.ID, item.OrderID, item.ProductName, item.Quantity,
		item.UnitPrice, item.Subtotal, position, item.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (s *SQLStore) loadItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	placeholders := make([]string, len(orderIDs))
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, order_id, product_name, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id IN (%s)
		ORDER BY order_id, position
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byOrder := make(map[string][]models.OrderItem)
	for rows.Next() {
		var item models.OrderItem
		var createdNs int64
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal, &createdNs); err != nil {
			return nil, fmt.Errorf("load items: %w", err)
		}
		item.CreatedAt = time.Unix(0, createdNs).UTC()
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	return byOrder, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var status string
	var createdNs, updatedNs int64
	err := row.Scan(&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail,
		&status, &order.TotalAmount, &createdNs, &updatedNs)
	if err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	order.CreatedAt = time.Unix(0, createdNs).UTC()
	order.UpdatedAt = time.Unix(0, updatedNs).UTC()
	return &order, nil
}

// buildFilter renders the predicate tree as SQL. Placeholder numbering
// starts at 1; args line up with the rendered string.
func buildFilter(f *Filter) (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}
	var args []any
	clause, err := renderFilter(f, &args)
	if err != nil {
		return "", nil, err
	}
	return clause, args, nil
}

func renderFilter(f *Filter, args *[]any) (string, error) {
	if len(f.And) > 0 || len(f.Or) > 0 {
		children := f.And
		op := " AND "
		if len(f.Or) > 0 {
			children = f.Or
			op = " OR "
		}
		parts := make([]string, 0, len(children))
		for i := range children {
			part, err := renderFilter(&children[i], args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, op) + ")", nil
	}

	col, ok := columnForField[f.Field]
	if !ok {
		return "", fmt.Errorf("%w: unknown filter field %q", ErrBadQuery, f.Field)
	}
	switch f.Op {
	case OpEq:
		*args = append(*args, f.Value)
		return fmt.Sprintf("%s = $%d", col, len(*args)), nil
	case OpContains:
		*args = append(*args, f.Value)
		return fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER($%d) || '%%'", col, len(*args)), nil
	default:
		return "", fmt.Errorf("%w: unknown filter op %q", ErrBadQuery, f.Op)
	}
}

func buildOrderBy(sort []SortKey, backward bool) (string, error) {
	if len(sort) == 0 {
		if backward {
			return "created_at ASC, id ASC", nil
		}
		return "created_at DESC, id DESC", nil
	}

	parts := make([]string, 0, len(sort)+1)
	for _, key := range sort {
		col, ok := columnForField[key.Field]
		if !ok {
			return "", fmt.Errorf("%w: unknown sort field %q", ErrBadQuery, key.Field)
		}
		dir := "ASC"
		if key.Direction == SortDesc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "id DESC")
	return strings.Join(parts, ", "), nil
}
