package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/models"
)

// DeleteWindow is how long after purchase a buyer may still delete an order.
const DeleteWindow = 24 * time.Hour

var (
	ErrOrderDelivered     = errors.New("delivered orders cannot be deleted")
	ErrDeleteWindowClosed = errors.New("cannot delete: orders older than 24 hours are final")
	ErrNotOrderOwner      = errors.New("order belongs to another account")
	ErrAlreadyDelivered   = errors.New("order is already delivered")
)

// CanDelete allows deletion only while now - date < DeleteWindow and the
// order is not delivered.
func CanDelete(o models.Order, now time.Time) error {
	if o.Status == models.OrderStatusDelivered {
		return ErrOrderDelivered
	}
	if now.Sub(o.Date) >= DeleteWindow {
		return ErrDeleteWindowClosed
	}
	return nil
}

type OrderAPI interface {
	Order(ctx context.Context, id string) (models.Order, error)
	UserOrders(ctx context.Context, email string, page int) (models.Page[models.Order], error)
	OrdersPage(ctx context.Context, page int) (models.Page[models.Order], error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.MutationResult, error)
	DeleteOrder(ctx context.Context, id string) (models.MutationResult, error)
}

// OrderRow is an order annotated for the buyer's order table.
type OrderRow struct {
	models.Order
	Deletable bool
	Blocked   string
}

type OrderService struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewOrderService(logger zerolog.Logger) *OrderService {
	return &OrderService{logger: logger, now: time.Now}
}

func (s *OrderService) UserOrders(ctx context.Context, api OrderAPI, email string, page int) ([]OrderRow, models.Page[models.Order], error) {
	p, err := api.UserOrders(ctx, email, page)
	if err != nil {
		return nil, p, fmt.Errorf("failed to load orders: %w", err)
	}
	now := s.now()
	rows := make([]OrderRow, len(p.Data))
	for i, o := range p.Data {
		rows[i] = OrderRow{Order: o}
		if err := CanDelete(o, now); err != nil {
			rows[i].Blocked = err.Error()
		} else {
			rows[i].Deletable = true
		}
	}
	return rows, p, nil
}

// DeleteOwn deletes the buyer's own order when the deletion rules allow it.
func (s *OrderService) DeleteOwn(ctx context.Context, api OrderAPI, email, id string) error {
	o, err := api.Order(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if !strings.EqualFold(o.Email, email) {
		return ErrNotOrderOwner
	}
	if err := CanDelete(o, s.now()); err != nil {
		return err
	}

	res, err := api.DeleteOrder(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("Error deleting order")
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNothingChanged
	}
	s.logger.Info().Str("order_id", id).Str("email", email).Msg("Order deleted")
	return nil
}

// MarkDelivered advances an order to delivered.
func (s *OrderService) MarkDelivered(ctx context.Context, api OrderAPI, id string) error {
	o, err := api.Order(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if !o.Status.CanTransition(models.OrderStatusDelivered) {
		return ErrAlreadyDelivered
	}
	res, err := api.UpdateOrderStatus(ctx, id, models.OrderStatusDelivered)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id).Msg("Error updating order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrNothingChanged
	}
	s.logger.Info().Str("order_id", id).Msg("Order marked delivered")
	return nil
}
