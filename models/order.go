package models

import (
	"time"
)

type OrderStatus string

const (
	// OrderCreatedStatus: the order holds the ticket until it expires or is paid.
	OrderCreatedStatus OrderStatus = "created"
	// OrderCancelledStatus: cancelled by the user or expired before payment.
	OrderCancelledStatus OrderStatus = "cancelled"
	OrderAwaitingPayment OrderStatus = "awaiting:payment"
	// OrderCompleteStatus is terminal; no event moves an order out of it.
	OrderCompleteStatus OrderStatus = "complete"
)

func (s OrderStatus) String() string {
	return string(s)
}

type Order struct {
	ID        int64       `db:"id" json:"id"`
	UserID    int64       `db:"user_id" json:"userId"`
	TicketID  int64       `db:"ticket_id" json:"ticketId"`
	Status    OrderStatus `db:"status" json:"status"`
	ExpiresAt time.Time   `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"updatedAt"`

	Ticket *Ticket `db:"-" json:"ticket,omitempty"`
}

// Payment is the payments.created payload; only the order reference matters
// to this service.
type Payment struct {
	ID      int64 `json:"id"`
	OrderID int64 `json:"orderId"`
}
