// Package orders holds the command and query handlers for the order
// aggregate. Expected domain failures (validation, not-found, business
// rules) come back inside the Result; the plain error return is reserved
// for infrastructure failures, which the wire layer reports as a generic
// database error.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omslab/order-service/internal/events"
	"github.com/omslab/order-service/internal/storage"
	"github.com/omslab/order-service/internal/validation"
	"github.com/omslab/order-service/pkg/metrics"
	"github.com/omslab/order-service/pkg/models"
	"github.com/omslab/order-service/pkg/result"
)

type Service struct {
	store     storage.Store
	publisher events.Publisher
	logger    *logrus.Logger
	metrics   *metrics.ServerMetrics
	now       func() time.Time
}

func NewService(store storage.Store, publisher events.Publisher, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.ServerMetrics) {
	s.metrics = m
}

func (s *Service) record(command, outcome string) {
	if s.metrics != nil {
		s.metrics.Commands.WithLabelValues(command, outcome).Inc()
	}
}

// Create validates the input, persists the order and its items in one
// transaction and publishes the created event after commit.
func (s *Service) Create(ctx context.Context, in validation.CreateOrderInput) (result.Result[OrderDTO], error) {
	if errs := validation.ValidateCreateOrder(in); len(errs) > 0 {
		s.record("create", "invalid")
		return result.Failure[OrderDTO](errs...), nil
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   newOrderNumber(),
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range in.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    roundCents(float64(item.Quantity) * item.UnitPrice),
			CreatedAt:   now,
		})
	}
	order.RecomputeTotal()

	if err := s.store.CreateOrder(ctx, order); err != nil {
		s.record("create", "error")
		return result.Result[OrderDTO]{}, fmt.Errorf("create order: %w", err)
	}
	s.record("create", "ok")

	dto := mapOrder(order)
	s.publisher.Publish(events.TopicOrderCreated, dto)

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
		"items_count":  len(order.Items),
	}).Info("Order created")

	return result.Success(dto), nil
}

// Update applies a partial patch: supplied fields overwrite, absent fields
// keep their value. A supplied item list replaces the existing one by
// position, preserving the identity of items that survive.
func (s *Service) Update(ctx context.Context, in validation.UpdateOrderInput) (result.Result[OrderDTO], error) {
	if errs := validation.ValidateUpdateOrder(in); len(errs) > 0 {
		s.record("update", "invalid")
		return result.Failure[OrderDTO](errs...), nil
	}

	order, err := s.store.GetOrderWithItems(ctx, in.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[OrderDTO](result.NotFoundError("Order", in.ID)), nil
		}
		return result.Result[OrderDTO]{}, fmt.Errorf("update order: %w", err)
	}

	now := s.now().UTC()

	if in.CustomerName != nil {
		order.CustomerName = *in.CustomerName
	}
	if in.CustomerEmail != nil {
		order.CustomerEmail = *in.CustomerEmail
	}
	if in.Status != nil {
		status, _ := models.ParseStatus(*in.Status)
		order.Status = status
	}
	if in.Items != nil {
		order.Items = s.mergeItems(order, in.Items, now)
	}
	order.RecomputeTotal()
	order.UpdatedAt = now

	if err := s.store.UpdateOrder(ctx, order); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[OrderDTO](result.NotFoundError("Order", in.ID)), nil
		}
		s.record("update", "error")
		return result.Result[OrderDTO]{}, fmt.Errorf("update order: %w", err)
	}
	s.record("update", "ok")

	dto := mapOrder(order)
	s.publisher.Publish(events.TopicOrderUpdated, dto)

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"status":      order.Status,
		"items_count": len(order.Items),
	}).Info("Order updated")

	return result.Success(dto), nil
}

// mergeItems walks existing and new items pairwise by position: overlap
// updates in place, surplus new items are appended, surplus existing items
// are dropped.
func (s *Service) mergeItems(order *models.Order, items []validation.ItemInput, now time.Time) []models.OrderItem {
	merged := make([]models.OrderItem, 0, len(items))
	for i, in := range items {
		if i < len(order.Items) {
			item := order.Items[i]
			item.ProductName = in.ProductName
			item.Quantity = in.Quantity
			item.UnitPrice = in.UnitPrice
			item.Subtotal = roundCents(float64(in.Quantity) * in.UnitPrice)
			merged = append(merged, item)
			continue
		}
		merged = append(merged, models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductName: in.ProductName,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    roundCents(float64(in.Quantity) * in.UnitPrice),
			CreatedAt:   now,
		})
	}
	return merged
}

// Delete removes the order and its items in one transaction and publishes
// the deleted event carrying the bare id. Completed orders cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, id string) (result.Result[bool], error) {
	order, err := s.store.GetOrderWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[bool](result.NotFoundError("Order", id)), nil
		}
		return result.Result[bool]{}, fmt.Errorf("delete order: %w", err)
	}

	if order.Status == models.StatusCompleted {
		return result.Failure[bool](result.BusinessRuleError("Completed orders cannot be deleted")), nil
	}

	if err := s.store.DeleteOrder(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[bool](result.NotFoundError("Order", id)), nil
		}
		s.record("delete", "error")
		return result.Result[bool]{}, fmt.Errorf("delete order: %w", err)
	}
	s.record("delete", "ok")

	s.publisher.Publish(events.TopicOrderDeleted, OrderDeletedPayload{ID: id})

	s.logger.WithField("order_id", id).Info("Order deleted")
	return result.Success(true), nil
}

func (s *Service) GetByID(ctx context.Context, id string) (result.Result[OrderDTO], error) {
	order, err := s.store.GetOrderWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result.Failure[OrderDTO](result.NotFoundError("Order", id)), nil
		}
		return result.Result[OrderDTO]{}, fmt.Errorf("get order: %w", err)
	}
	return result.Success(mapOrder(order)), nil
}

// List runs the query spec against the store. Combining a cursor with
// custom sort keys is rejected: cursors encode a position in the fixed
// newest-first order and would silently mis-page under any other order.
func (s *Service) List(ctx context.Context, q storage.ListQuery) (result.Result[PageDTO], error) {
	if (q.After != "" || q.Before != "") && len(q.Sort) > 0 {
		return result.Failure[PageDTO](
			result.ValidationError("", "Cursor paging cannot be combined with custom sorting")), nil
	}
	if q.After != "" && q.Before != "" {
		return result.Failure[PageDTO](
			result.ValidationError("", "Provide at most one of 'after' and 'before'")), nil
	}

	page, err := s.store.ListOrders(ctx, q)
	if err != nil {
		if errors.Is(err, storage.ErrBadQuery) {
			return result.Failure[PageDTO](result.ValidationError("", err.Error())), nil
		}
		return result.Result[PageDTO]{}, fmt.Errorf("list orders: %w", err)
	}

	return result.Success(PageDTO{
		Orders:      mapOrders(page.Orders),
		TotalCount:  page.TotalCount,
		StartCursor: page.StartCursor,
		EndCursor:   page.EndCursor,
		HasNext:     page.HasNext,
		HasPrev:     page.HasPrev,
	}), nil
}

// ListByStatus is List with an equality filter on status.
func (s *Service) ListByStatus(ctx context.Context, status string) (result.Result[[]OrderDTO], error) {
	parsed, ok := models.ParseStatus(status)
	if !ok {
		return result.Failure[[]OrderDTO](
			result.ValidationError("status", fmt.Sprintf("Invalid status %q", status))), nil
	}

	res, err := s.List(ctx, storage.ListQuery{
		Filter: &storage.Filter{Field: "status", Op: storage.OpEq, Value: string(parsed)},
	})
	if err != nil {
		return result.Result[[]OrderDTO]{}, err
	}
	if res.IsFailure() {
		return result.Failure[[]OrderDTO](res.Errors()...), nil
	}
	return result.Success(res.Value().Orders), nil
}

// CountByYear reports how many orders were created in the given year.
func (s *Service) CountByYear(ctx context.Context, year int) (int, error) {
	count, err := s.store.CountOrdersByYear(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// newOrderNumber generates a unique, immutable order number of the form
// ORD-<12 hex chars>.
func newOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD-" + raw[:12]
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
