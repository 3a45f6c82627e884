package graphql

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/omslab/order-service/internal/events"
	"github.com/omslab/order-service/internal/orders"
	"github.com/omslab/order-service/internal/storage"
	"github.com/omslab/order-service/internal/validation"
	"github.com/omslab/order-service/pkg/result"
)

func newTestSchema(t *testing.T) (graphql.Schema, *orders.Service) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, storage.InitSchema(context.Background(), db))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	svc := orders.NewService(storage.NewSQLStore(db), events.NewBus(logger), logger)
	schema, err := NewSchema(svc, logger)
	require.NoError(t, err)
	return schema, svc
}

func execute(t *testing.T, schema graphql.Schema, query string) *graphql.Result {
	t.Helper()
	return graphql.Do(graphql.Params{
		Schema:        schema,
		RequestString: query,
		Context:       context.Background(),
	})
}

func createSample(t *testing.T, svc *orders.Service) orders.OrderDTO {
	t.Helper()
	res, err := svc.Create(context.Background(), validation.CreateOrderInput{
		CustomerName:  "John Doe",
		CustomerEmail: "john@example.com",
		Items: []validation.ItemInput{
			{ProductName: "Widget", Quantity: 2, UnitPrice: 50.00},
		},
	})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	return res.Value()
}

func TestCreateOrderMutation(t *testing.T) {
	schema, _ := newTestSchema(t)

	res := execute(t, schema, `
		mutation {
			createOrder(input: {
				customerName: "John Doe",
				customerEmail: "john@example.com",
				items: [
					{productName: "Widget", quantity: 2, unitPrice: 50.0},
					{productName: "Gadget", quantity: 1, unitPrice: 30.0}
				]
			}) {
				orderNumber
				status
				totalAmount
				items { productName subtotal }
			}
		}
	`)
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]interface{})
	created := data["createOrder"].(map[string]interface{})
	assert.Equal(t, "PENDING", created["status"])
	assert.InDelta(t, 130.00, created["totalAmount"], 1e-9)
	assert.Contains(t, created["orderNumber"], "ORD-")

	items := created["items"].([]interface{})
	require.Len(t, items, 2)
	first := items[0].(map[string]interface{})
	assert.Equal(t, "Widget", first["productName"])
	assert.InDelta(t, 100.00, first["subtotal"], 1e-9)
}

func TestCreateOrderValidationExtensions(t *testing.T) {
	schema, _ := newTestSchema(t)

	res := execute(t, schema, `
		mutation {
			createOrder(input: {customerName: "", customerEmail: "not-an-email", items: []}) {
				id
			}
		}
	`)
	require.Len(t, res.Errors, 1)

	gqlErr := res.Errors[0]
	assert.Equal(t, "Validation failed", gqlErr.Message)
	assert.Equal(t, result.CodeValidation, gqlErr.Extensions["code"])

	fields, ok := gqlErr.Extensions["fields"].(map[string][]string)
	require.True(t, ok, "expected grouped field errors, got %T", gqlErr.Extensions["fields"])
	assert.Contains(t, fields, "customerName")
	assert.Contains(t, fields, "customerEmail")
	assert.Contains(t, fields, "items")
}

func TestOrderByIDNotFound(t *testing.T) {
	schema, _ := newTestSchema(t)

	res := execute(t, schema, `
		query {
			orderById(id: "6e1cbea1-0000-0000-0000-000000000000") { id }
		}
	`)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, result.CodeNotFound, res.Errors[0].Extensions["code"])
}

func TestOrderByIDReturnsOrder(t *testing.T) {
	schema, svc := newTestSchema(t)
	created := createSample(t, svc)

	res := execute(t, schema, fmt.Sprintf(`
		query { orderById(id: %q) { id customerName customerEmail } }
	`, created.ID))
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]interface{})
	got := data["orderById"].(map[string]interface{})
	assert.Equal(t, created.ID, got["id"])
	assert.Equal(t, "John Doe", got["customerName"])
}

func TestOrdersConnectionQuery(t *testing.T) {
	schema, svc := newTestSchema(t)
	createSample(t, svc)
	createSample(t, svc)

	res := execute(t, schema, `
		query {
			orders(first: 1) {
				totalCount
				pageInfo { hasNextPage hasPreviousPage endCursor }
				nodes { orderNumber }
			}
		}
	`)
	require.Empty(t, res.Errors)

	data := res.Data.(map[string]interface{})
	conn := data["orders"].(map[string]interface{})
	assert.Equal(t, 2, conn["totalCount"])
	require.Len(t, conn["nodes"].([]interface{}), 1)

	info := conn["pageInfo"].(map[string]interface{})
	assert.Equal(t, true, info["hasNextPage"])
	assert.Equal(t, false, info["hasPreviousPage"])
	assert.NotEmpty(t, info["endCursor"])
}

func TestOrdersQueryWithFilter(t *testing.T) {
	schema, svc := newTestSchema(t)
	createSample(t, svc)

	res := execute(t, schema, `
		query {
			orders(filter: {field: "customerName", op: CONTAINS, value: "doe"}) {
				totalCount
			}
		}
	`)
	require.Empty(t, res.Errors)
	conn := res.Data.(map[string]interface{})["orders"].(map[string]interface{})
	assert.Equal(t, 1, conn["totalCount"])
}

func TestOrdersQueryUnknownFilterField(t *testing.T) {
	schema, svc := newTestSchema(t)
	createSample(t, svc)

	res := execute(t, schema, `
		query {
			orders(filter: {field: "secret", op: EQ, value: "x"}) { totalCount }
		}
	`)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, result.CodeValidation, res.Errors[0].Extensions["code"])
}

func TestOrdersByStatusQuery(t *testing.T) {
	schema, svc := newTestSchema(t)
	created := createSample(t, svc)

	res := execute(t, schema, `
		query { ordersByStatus(status: PENDING) { id } }
	`)
	require.Empty(t, res.Errors)

	list := res.Data.(map[string]interface{})["ordersByStatus"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].(map[string]interface{})["id"])
}

func TestUpdateOrderMutation(t *testing.T) {
	schema, svc := newTestSchema(t)
	created := createSample(t, svc)

	res := execute(t, schema, fmt.Sprintf(`
		mutation {
			updateOrder(input: {id: %q, status: PROCESSING}) {
				status
				customerName
			}
		}
	`, created.ID))
	require.Empty(t, res.Errors)

	updated := res.Data.(map[string]interface{})["updateOrder"].(map[string]interface{})
	assert.Equal(t, "PROCESSING", updated["status"])
	assert.Equal(t, "John Doe", updated["customerName"])
}

func TestDeleteOrderMutation(t *testing.T) {
	schema, svc := newTestSchema(t)
	created := createSample(t, svc)

	res := execute(t, schema, fmt.Sprintf(`mutation { deleteOrder(id: %q) }`, created.ID))
	require.Empty(t, res.Errors)
	assert.Equal(t, true, res.Data.(map[string]interface{})["deleteOrder"])

	again := execute(t, schema, fmt.Sprintf(`mutation { deleteOrder(id: %q) }`, created.ID))
	require.Len(t, again.Errors, 1)
	assert.Equal(t, result.CodeNotFound, again.Errors[0].Extensions["code"])
}

func TestDeleteCompletedOrderBusinessRule(t *testing.T) {
	schema, svc := newTestSchema(t)
	created := createSample(t, svc)

	status := "COMPLETED"
	updated, err := svc.Update(context.Background(), validation.UpdateOrderInput{ID: created.ID, Status: &status})
	require.NoError(t, err)
	require.True(t, updated.IsSuccess())

	res := execute(t, schema, fmt.Sprintf(`mutation { deleteOrder(id: %q) }`, created.ID))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, result.CodeBusinessRule, res.Errors[0].Extensions["code"])
	assert.Equal(t, "Completed orders cannot be deleted", res.Errors[0].Message)
}
