package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"order-system/internal/status"
	"order-system/models"
)

func newTestOrderEvents(orders OrderStore, outbox OutboxStore) *OrderEvents {
	return NewOrderEvents(stubTx{}, orders, outbox, 5*time.Second)
}

func TestHandleExpirationComplete_CancelsPendingOrder(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, UserID: 42, Status: models.OrderCreatedStatus}, nil)
	orders.On("UpdateStatus", mock.Anything, mock.Anything, int64(7), models.OrderCancelledStatus).
		Return(nil)
	outbox := new(mockOutboxStore)
	outbox.On("Append", mock.Anything, mock.Anything, models.OrderUpdated, mock.Anything).Return(nil)

	e := newTestOrderEvents(orders, outbox)
	m := newFakeMsg(t, models.ExpirationComplete, &models.Order{ID: 7})
	e.HandleExpirationComplete(context.Background(), m)

	assert.Equal(t, "ack", m.outcome)
	orders.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

func TestHandleExpirationComplete_CompleteOrderStaysComplete(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, UserID: 42, Status: models.OrderCompleteStatus}, nil)

	e := newTestOrderEvents(orders, new(mockOutboxStore))
	m := newFakeMsg(t, models.ExpirationComplete, &models.Order{ID: 7})
	e.HandleExpirationComplete(context.Background(), m)

	assert.Equal(t, "term", m.outcome)
	orders.AssertNotCalled(t, "UpdateStatus")
}

func TestHandleExpirationComplete_UnknownOrder(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).Return(nil, status.ErrOrderNotFound)

	e := newTestOrderEvents(orders, new(mockOutboxStore))
	m := newFakeMsg(t, models.ExpirationComplete, &models.Order{ID: 7})
	e.HandleExpirationComplete(context.Background(), m)

	assert.Equal(t, "term", m.outcome)
}

func TestHandleExpirationComplete_TransientFailureRetries(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, Status: models.OrderCreatedStatus}, nil)
	orders.On("UpdateStatus", mock.Anything, mock.Anything, int64(7), models.OrderCancelledStatus).
		Return(assert.AnError)

	e := newTestOrderEvents(orders, new(mockOutboxStore))
	m := newFakeMsg(t, models.ExpirationComplete, &models.Order{ID: 7})
	e.HandleExpirationComplete(context.Background(), m)

	assert.Equal(t, "nak", m.outcome)
	assert.Equal(t, 5*time.Second, m.nakDelay)
}

func TestHandlePaymentCreated_CompletesOrder(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, UserID: 42, Status: models.OrderCreatedStatus}, nil)
	orders.On("UpdateStatus", mock.Anything, mock.Anything, int64(7), models.OrderCompleteStatus).
		Return(nil)
	outbox := new(mockOutboxStore)
	outbox.On("Append", mock.Anything, mock.Anything, models.OrderUpdated, mock.Anything).Return(nil)

	e := newTestOrderEvents(orders, outbox)
	m := newFakeMsg(t, models.PaymentCreated, &models.Payment{ID: 3, OrderID: 7})
	e.HandlePaymentCreated(context.Background(), m)

	assert.Equal(t, "ack", m.outcome)
	orders.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

// A payment that lands after the expiration cancelled the order still wins:
// complete is applied regardless of the current status.
func TestHandlePaymentCreated_OverridesCancellation(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, UserID: 42, Status: models.OrderCancelledStatus}, nil)
	orders.On("UpdateStatus", mock.Anything, mock.Anything, int64(7), models.OrderCompleteStatus).
		Return(nil)
	outbox := new(mockOutboxStore)
	outbox.On("Append", mock.Anything, mock.Anything, models.OrderUpdated, mock.Anything).Return(nil)

	e := newTestOrderEvents(orders, outbox)
	m := newFakeMsg(t, models.PaymentCreated, &models.Payment{ID: 3, OrderID: 7})
	e.HandlePaymentCreated(context.Background(), m)

	assert.Equal(t, "ack", m.outcome)
	orders.AssertExpectations(t)
}

func TestHandlePaymentCreated_UnknownOrder(t *testing.T) {
	orders := new(mockOrderStore)
	orders.On("FindByID", mock.Anything, int64(7)).Return(nil, status.ErrOrderNotFound)

	e := newTestOrderEvents(orders, new(mockOutboxStore))
	m := newFakeMsg(t, models.PaymentCreated, &models.Payment{ID: 3, OrderID: 7})
	e.HandlePaymentCreated(context.Background(), m)

	assert.Equal(t, "term", m.outcome)
}

func TestOrderEvents_WrongSubject(t *testing.T) {
	e := newTestOrderEvents(new(mockOrderStore), new(mockOutboxStore))

	m := newFakeMsg(t, models.PaymentCreated, &models.Payment{ID: 3, OrderID: 7})
	e.HandleExpirationComplete(context.Background(), m)
	assert.Equal(t, "term", m.outcome)

	m = newFakeMsg(t, models.ExpirationComplete, &models.Order{ID: 7})
	e.HandlePaymentCreated(context.Background(), m)
	assert.Equal(t, "term", m.outcome)
}
