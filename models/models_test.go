package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-system/internal/status"
)

func TestSubjectStream(t *testing.T) {
	assert.Equal(t, "tickets", TicketCreated.Stream())
	assert.Equal(t, "tickets", TicketUpdated.Stream())
	assert.Equal(t, "orders", OrderUpdated.Stream())
	assert.Equal(t, "expiration", ExpirationComplete.Stream())
	assert.Equal(t, "payments", PaymentCreated.Stream())
}

func TestSubjectDurable(t *testing.T) {
	assert.Equal(t, "TICKETS_CREATED", TicketCreated.Durable())
	assert.Equal(t, "EXPIRATION_COMPLETE", ExpirationComplete.Durable())
}

func TestEncodeDecodeTicket(t *testing.T) {
	ticket := &Ticket{
		ID:      42,
		Title:   "Concert",
		Price:   decimal.NewFromInt(20),
		Version: 0,
	}

	data, err := Encode(TicketCreated, ticket)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tickets.created":{"id":42,"title":"Concert","price":"20","version":0}}`, string(data))

	decoded, err := DecodeTicket(TicketCreated, data)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, decoded.ID)
	assert.Equal(t, ticket.Title, decoded.Title)
	assert.True(t, ticket.Price.Equal(decoded.Price))
	assert.Equal(t, ticket.Version, decoded.Version)
}

func TestDecodeTicketNumericPrice(t *testing.T) {
	// Other services serialize price as a bare JSON number.
	data := []byte(`{"tickets.created":{"id":1,"title":"Concert","price":20,"version":0}}`)

	ticket, err := DecodeTicket(TicketCreated, data)
	require.NoError(t, err)
	assert.True(t, ticket.Price.Equal(decimal.NewFromInt(20)))
}

func TestDecodeWrongSubjectKey(t *testing.T) {
	data := []byte(`{"tickets.updated":{"id":1,"title":"Concert","price":20,"version":1}}`)

	_, err := DecodeTicket(TicketCreated, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrMalformedMessage)
}

func TestDecodeMalformedPayload(t *testing.T) {
	for _, data := range []string{
		`not json at all`,
		`[]`,
		`{"tickets.created":{"id":"nope"}}`,
		`{"tickets.created":{"id":1},"extra.key":{}}`,
	} {
		_, err := DecodeTicket(TicketCreated, []byte(data))
		assert.ErrorIs(t, err, status.ErrMalformedMessage, "payload: %s", data)
	}
}

func TestDecodePayment(t *testing.T) {
	data := []byte(`{"payments.created":{"id":7,"orderId":99}}`)

	payment, err := DecodePayment(PaymentCreated, data)
	require.NoError(t, err)
	assert.Equal(t, int64(7), payment.ID)
	assert.Equal(t, int64(99), payment.OrderID)
}
