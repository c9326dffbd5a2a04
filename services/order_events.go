package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"

	"order-system/internal/status"
	"order-system/models"
	"order-system/monitoring"
)

// OrderEvents drives the event side of the order state machine: expiration
// cancels, payment completes. Complete is terminal, so when both arrive the
// payment wins regardless of delivery order.
type OrderEvents struct {
	db       Transactor
	orders   OrderStore
	outbox   OutboxStore
	nakDelay time.Duration
}

func NewOrderEvents(db Transactor, orders OrderStore, outbox OutboxStore, nakDelay time.Duration) *OrderEvents {
	return &OrderEvents{
		db:       db,
		orders:   orders,
		outbox:   outbox,
		nakDelay: nakDelay,
	}
}

// HandleExpirationComplete cancels an order whose reservation window ran
// out, unless payment already completed it.
func (e *OrderEvents) HandleExpirationComplete(ctx context.Context, m Msg) {
	if m.Subject() != models.ExpirationComplete.String() {
		slog.Warn("wrong subject", "subject", m.Subject())
		m.Term(ctx)
		return
	}
	expired, err := models.DecodeOrder(models.ExpirationComplete, m.Data())
	if err != nil {
		slog.Error("decode expiration event", "error", err)
		m.Term(ctx)
		return
	}
	m.InProgress(ctx)

	order, err := e.orders.FindByID(ctx, expired.ID)
	if errors.Is(err, status.ErrOrderNotFound) {
		slog.Info("expired order does not exist", "order", expired.ID)
		m.Term(ctx)
		return
	}
	if err != nil {
		slog.Error("find expired order", "order", expired.ID, "error", err)
		m.Nak(ctx, e.nakDelay)
		return
	}
	if order.Status == models.OrderCompleteStatus {
		// payment beat the expiration
		slog.Info("order already complete, expiration ignored", "order", order.ID)
		m.Term(ctx)
		return
	}

	if err := e.transition(ctx, order, models.OrderCancelledStatus); err != nil {
		slog.Error("cancel expired order", "order", order.ID, "error", err)
		m.Nak(ctx, e.nakDelay)
		return
	}
	slog.Info("order cancelled by expiration", "order", order.ID)
	m.Ack(ctx)
}

// HandlePaymentCreated completes the order unconditionally; that makes the
// transition idempotent and resolves any race with a pending cancellation.
func (e *OrderEvents) HandlePaymentCreated(ctx context.Context, m Msg) {
	if m.Subject() != models.PaymentCreated.String() {
		slog.Warn("wrong subject", "subject", m.Subject())
		m.Term(ctx)
		return
	}
	payment, err := models.DecodePayment(models.PaymentCreated, m.Data())
	if err != nil {
		slog.Error("decode payment event", "error", err)
		m.Term(ctx)
		return
	}
	m.InProgress(ctx)

	order, err := e.orders.FindByID(ctx, payment.OrderID)
	if errors.Is(err, status.ErrOrderNotFound) {
		slog.Info("paid order does not exist", "order", payment.OrderID)
		m.Term(ctx)
		return
	}
	if err != nil {
		slog.Error("find paid order", "order", payment.OrderID, "error", err)
		m.Nak(ctx, e.nakDelay)
		return
	}

	if err := e.transition(ctx, order, models.OrderCompleteStatus); err != nil {
		slog.Error("complete paid order", "order", order.ID, "error", err)
		m.Nak(ctx, e.nakDelay)
		return
	}
	slog.Info("order completed by payment", "order", order.ID)
	m.Ack(ctx)
}

// transition persists the status change together with its orders.updated
// outbox record.
func (e *OrderEvents) transition(ctx context.Context, order *models.Order, st models.OrderStatus) error {
	err := e.db.RunInTx(ctx, func(tx *dbx.Tx) error {
		if err := e.orders.UpdateStatus(ctx, tx, order.ID, st); err != nil {
			return err
		}
		order.Status = st
		payload, err := models.Encode(models.OrderUpdated, order)
		if err != nil {
			return err
		}
		return e.outbox.Append(ctx, tx, models.OrderUpdated, payload)
	})
	if err != nil {
		return err
	}
	monitoring.TrackOrderTransition(st.String())
	return nil
}
