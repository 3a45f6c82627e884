package orders

import (
	"time"

	"github.com/omslab/order-service/pkg/models"
)

// OrderDTO is the external shape of an order: what mutations and queries
// return and what the created/updated topics carry. Field names follow the
// wire convention (camelCase).
type OrderDTO struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"orderNumber"`
	CustomerName  string         `json:"customerName"`
	CustomerEmail string         `json:"customerEmail"`
	Status        string         `json:"status"`
	TotalAmount   float64        `json:"totalAmount"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Items         []OrderItemDTO `json:"items"`
}

type OrderItemDTO struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	Subtotal    float64   `json:"subtotal"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OrderDeletedPayload is the deleted-topic payload: the bare id.
type OrderDeletedPayload struct {
	ID string `json:"id"`
}

// PageDTO is one bounded page of orders plus cursor bookkeeping.
type PageDTO struct {
	Orders      []OrderDTO `json:"orders"`
	TotalCount  int        `json:"totalCount"`
	StartCursor string     `json:"startCursor"`
	EndCursor   string     `json:"endCursor"`
	HasNext     bool       `json:"hasNext"`
	HasPrev     bool       `json:"hasPrev"`
}

func mapOrder(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
		Items:         make([]OrderItemDTO, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
			CreatedAt:   item.CreatedAt,
		})
	}
	return dto
}

func mapOrders(orders []models.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, mapOrder(&orders[i]))
	}
	return dtos
}
