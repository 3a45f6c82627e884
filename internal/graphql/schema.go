// Package graphql exposes the order operations over a runtime-built
// schema: queries and mutations via POST /graphql, while the subscription
// topics are streamed by the websocket hub.
package graphql

import (
	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"

	"github.com/omslab/order-service/internal/orders"
	"github.com/omslab/order-service/internal/storage"
	"github.com/omslab/order-service/internal/validation"
	"github.com/omslab/order-service/pkg/result"
)

// NewSchema wires the order service into the GraphQL type system.
func NewSchema(svc *orders.Service, logger *logrus.Logger) (graphql.Schema, error) {
	statusEnum := graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderStatus",
		Values: graphql.EnumValueConfigMap{
			"PENDING":    &graphql.EnumValueConfig{Value: "PENDING"},
			"PROCESSING": &graphql.EnumValueConfig{Value: "PROCESSING"},
			"COMPLETED":  &graphql.EnumValueConfig{Value: "COMPLETED"},
			"CANCELLED":  &graphql.EnumValueConfig{Value: "CANCELLED"},
		},
	})

	orderItemType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OrderItem",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"orderId":     &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"productName": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"quantity":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"unitPrice":   &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"subtotal":    &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"createdAt":   &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
		},
	})

	orderType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Order",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"orderNumber":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"customerName":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"customerEmail": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"status":        &graphql.Field{Type: graphql.NewNonNull(statusEnum)},
			"totalAmount":   &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"createdAt":     &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"updatedAt":     &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime)},
			"items":         &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderItemType)))},
		},
	})

	pageInfoType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"startCursor":     &graphql.Field{Type: graphql.String},
			"endCursor":       &graphql.Field{Type: graphql.String},
		},
	})

	ordersConnectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "OrdersConnection",
		Fields: graphql.Fields{
			"totalCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"pageInfo":   &graphql.Field{Type: graphql.NewNonNull(pageInfoType)},
			"nodes":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderType)))},
		},
	})

	filterOpEnum := graphql.NewEnum(graphql.EnumConfig{
		Name: "FilterOp",
		Values: graphql.EnumValueConfigMap{
			"EQ":       &graphql.EnumValueConfig{Value: "eq"},
			"CONTAINS": &graphql.EnumValueConfig{Value: "contains"},
		},
	})

	sortDirectionEnum := graphql.NewEnum(graphql.EnumConfig{
		Name: "SortDirection",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: "ASC"},
			"DESC": &graphql.EnumValueConfig{Value: "DESC"},
		},
	})

	var orderFilterInput *graphql.InputObject
	orderFilterInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderFilterInput",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			return graphql.InputObjectConfigFieldMap{
				"field": &graphql.InputObjectFieldConfig{Type: graphql.String},
				"op":    &graphql.InputObjectFieldConfig{Type: filterOpEnum},
				"value": &graphql.InputObjectFieldConfig{Type: graphql.String},
				"and":   &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(orderFilterInput))},
				"or":    &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(orderFilterInput))},
			}
		}),
	})

	orderSortInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "OrderSortInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"field":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"direction": &graphql.InputObjectFieldConfig{Type: sortDirectionEnum},
		},
	})

	createOrderItemInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateOrderItemInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"productName": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"quantity":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Int)},
			"unitPrice":   &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	createOrderInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "CreateOrderInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"customerName":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"customerEmail": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"items":         &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(createOrderItemInput)))},
		},
	})

	updateOrderInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "UpdateOrderInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"id":            &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.ID)},
			"customerName":  &graphql.InputObjectFieldConfig{Type: graphql.String},
			"customerEmail": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"status":        &graphql.InputObjectFieldConfig{Type: statusEnum},
			"items":         &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(createOrderItemInput))},
		},
	})

	r := &resolvers{svc: svc, logger: logger}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"orders": &graphql.Field{
				Type: graphql.NewNonNull(ordersConnectionType),
				Args: graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: orderFilterInput},
					"sort":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(orderSortInput))},
					"first":  &graphql.ArgumentConfig{Type: graphql.Int},
					"after":  &graphql.ArgumentConfig{Type: graphql.String},
					"last":   &graphql.ArgumentConfig{Type: graphql.Int},
					"before": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.orders,
			},
			"orderById": &graphql.Field{
				Type: graphql.NewNonNull(orderType),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.orderByID,
			},
			"ordersByStatus": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(orderType))),
				Args: graphql.FieldConfigArgument{
					"status": &graphql.ArgumentConfig{Type: graphql.NewNonNull(statusEnum)},
				},
				Resolve: r.ordersByStatus,
			},
			"orderCountByYear": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Args: graphql.FieldConfigArgument{
					"year": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: r.orderCountByYear,
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createOrder": &graphql.Field{
				Type: graphql.NewNonNull(orderType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(createOrderInput)},
				},
				Resolve: r.createOrder,
			},
			"updateOrder": &graphql.Field{
				Type: graphql.NewNonNull(orderType),
				Args: graphql.FieldConfigArgument{
					"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(updateOrderInput)},
				},
				Resolve: r.updateOrder,
			},
			"deleteOrder": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: r.deleteOrder,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

type resolvers struct {
	svc    *orders.Service
	logger *logrus.Logger
}

func (r *resolvers) createOrder(p graphql.ResolveParams) (interface{}, error) {
	input, _ := p.Args["input"].(map[string]interface{})
	in := validation.CreateOrderInput{
		CustomerName:  stringArg(input, "customerName"),
		CustomerEmail: stringArg(input, "customerEmail"),
		Items:         decodeItems(input["items"]),
	}

	res, err := r.svc.Create(p.Context, in)
	return r.unwrapOrder(res, err)
}

func (r *resolvers) updateOrder(p graphql.ResolveParams) (interface{}, error) {
	input, _ := p.Args["input"].(map[string]interface{})
	in := validation.UpdateOrderInput{
		ID:            stringArg(input, "id"),
		CustomerName:  optionalString(input, "customerName"),
		CustomerEmail: optionalString(input, "customerEmail"),
		Status:        optionalString(input, "status"),
	}
	if raw, ok := input["items"]; ok && raw != nil {
		in.Items = decodeItems(raw)
	}

	res, err := r.svc.Update(p.Context, in)
	return r.unwrapOrder(res, err)
}

func (r *resolvers) deleteOrder(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)

	res, err := r.svc.Delete(p.Context, id)
	if err != nil {
		r.logger.WithError(err).Error("deleteOrder failed")
		return nil, databaseError()
	}
	if res.IsFailure() {
		return nil, errorFromResult(res.Errors())
	}
	return res.Value(), nil
}

func (r *resolvers) orderByID(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)

	res, err := r.svc.GetByID(p.Context, id)
	return r.unwrapOrder(res, err)
}

func (r *resolvers) orders(p graphql.ResolveParams) (interface{}, error) {
	q := storage.ListQuery{
		Filter: decodeFilter(p.Args["filter"]),
		Sort:   decodeSort(p.Args["sort"]),
	}
	if first, ok := intArg(p.Args, "first"); ok {
		q.Limit = first
	}
	if last, ok := intArg(p.Args, "last"); ok {
		q.Limit = last
	}
	if after, ok := p.Args["after"].(string); ok {
		q.After = after
	}
	if before, ok := p.Args["before"].(string); ok {
		q.Before = before
	}

	res, err := r.svc.List(p.Context, q)
	if err != nil {
		r.logger.WithError(err).Error("orders query failed")
		return nil, databaseError()
	}
	if res.IsFailure() {
		return nil, errorFromResult(res.Errors())
	}

	page := res.Value()
	return connection{
		TotalCount: page.TotalCount,
		PageInfo: pageInfo{
			HasNextPage:     page.HasNext,
			HasPreviousPage: page.HasPrev,
			StartCursor:     page.StartCursor,
			EndCursor:       page.EndCursor,
		},
		Nodes: page.Orders,
	}, nil
}

func (r *resolvers) ordersByStatus(p graphql.ResolveParams) (interface{}, error) {
	status, _ := p.Args["status"].(string)

	res, err := r.svc.ListByStatus(p.Context, status)
	if err != nil {
		r.logger.WithError(err).Error("ordersByStatus query failed")
		return nil, databaseError()
	}
	if res.IsFailure() {
		return nil, errorFromResult(res.Errors())
	}
	return res.Value(), nil
}

func (r *resolvers) orderCountByYear(p graphql.ResolveParams) (interface{}, error) {
	year, _ := intArg(p.Args, "year")

	count, err := r.svc.CountByYear(p.Context, year)
	if err != nil {
		r.logger.WithError(err).Error("orderCountByYear query failed")
		return nil, databaseError()
	}
	return count, nil
}

func (r *resolvers) unwrapOrder(res result.Result[orders.OrderDTO], err error) (interface{}, error) {
	if err != nil {
		r.logger.WithError(err).Error("Order operation failed")
		return nil, databaseError()
	}
	if res.IsFailure() {
		return nil, errorFromResult(res.Errors())
	}
	return res.Value(), nil
}

type connection struct {
	TotalCount int               `json:"totalCount"`
	PageInfo   pageInfo          `json:"pageInfo"`
	Nodes      []orders.OrderDTO `json:"nodes"`
}

type pageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor"`
	EndCursor       string `json:"endCursor"`
}

func stringArg(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func optionalString(m map[string]interface{}, key string) *string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

func intArg(m map[string]interface{}, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func floatArg(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func decodeItems(raw interface{}) []validation.ItemInput {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	items := make([]validation.ItemInput, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		quantity, _ := intArg(m, "quantity")
		items = append(items, validation.ItemInput{
			ProductName: stringArg(m, "productName"),
			Quantity:    quantity,
			UnitPrice:   floatArg(m, "unitPrice"),
		})
	}
	return items
}

func decodeFilter(raw interface{}) *storage.Filter {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	f := &storage.Filter{
		Field: stringArg(m, "field"),
		Op:    storage.FilterOp(stringArg(m, "op")),
		Value: stringArg(m, "value"),
	}
	if children, ok := m["and"].([]interface{}); ok {
		for _, child := range children {
			if sub := decodeFilter(child); sub != nil {
				f.And = append(f.And, *sub)
			}
		}
	}
	if children, ok := m["or"].([]interface{}); ok {
		for _, child := range children {
			if sub := decodeFilter(child); sub != nil {
				f.Or = append(f.Or, *sub)
			}
		}
	}
	return f
}

func decodeSort(raw interface{}) []storage.SortKey {
	list, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	keys := make([]storage.SortKey, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		key := storage.SortKey{Field: stringArg(m, "field"), Direction: storage.SortAsc}
		if dir := stringArg(m, "direction"); dir == string(storage.SortDesc) {
			key.Direction = storage.SortDesc
		}
		keys = append(keys, key)
	}
	return keys
}
