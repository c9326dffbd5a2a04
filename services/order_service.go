package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"

	"order-system/internal/status"
	"order-system/models"
	"order-system/monitoring"
)

// OrderService owns every write to Order.status. Commands come from the
// HTTP layer; the event-driven transitions live in OrderEvents.
type OrderService struct {
	db      Transactor
	orders  OrderStore
	tickets TicketStore
	outbox  OutboxStore
	window  time.Duration
}

func NewOrderService(db Transactor, orders OrderStore, tickets TicketStore, outbox OutboxStore, window time.Duration) *OrderService {
	return &OrderService{
		db:      db,
		orders:  orders,
		tickets: tickets,
		outbox:  outbox,
		window:  window,
	}
}

// CreateOrder reserves a ticket for a user. At most one non-cancelled order
// may hold a ticket; the order insert and the orders.created outbox record
// commit together, so downstream consumers never observe a creation without
// its event.
func (s *OrderService) CreateOrder(ctx context.Context, userID, ticketID int64) (*models.Order, error) {
	if ticketID <= 0 {
		return nil, status.ErrInvalidTicketID
	}

	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.orders.ExistsActiveForTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if reserved {
		return nil, status.ErrTicketReserved
	}

	order := &models.Order{
		UserID:    userID,
		TicketID:  ticketID,
		Status:    models.OrderCreatedStatus,
		ExpiresAt: time.Now().Add(s.window),
	}
	err = s.db.RunInTx(ctx, func(tx *dbx.Tx) error {
		if err := s.orders.Insert(ctx, tx, order); err != nil {
			return err
		}
		order.Ticket = ticket
		payload, err := models.Encode(models.OrderCreated, order)
		if err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, models.OrderCreated, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("create order for ticket %d: %w", ticketID, err)
	}
	monitoring.TrackOrderTransition(models.OrderCreatedStatus.String())
	return order, nil
}

// CancelOrder is the user-initiated cancellation. Only the order's owner may
// cancel it.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, status.ErrNotOrderOwner
	}

	err = s.db.RunInTx(ctx, func(tx *dbx.Tx) error {
		if err := s.orders.UpdateStatus(ctx, tx, orderID, models.OrderCancelledStatus); err != nil {
			return err
		}
		order.Status = models.OrderCancelledStatus
		payload, err := models.Encode(models.OrderCancelled, order)
		if err != nil {
			return err
		}
		return s.outbox.Append(ctx, tx, models.OrderCancelled, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	monitoring.TrackOrderTransition(models.OrderCancelledStatus.String())
	return order, nil
}

func (s *OrderService) GetOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	return s.orders.FindByUser(ctx, userID)
}

func (s *OrderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, status.ErrNotOrderOwner
	}
	return order, nil
}
