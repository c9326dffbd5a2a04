package models

import "strings"

// Subject is a stream subject. Subjects are namespaced by the stream that
// carries them: everything before the first dot is the stream name.
type Subject string

const (
	TicketCreated      Subject = "tickets.created"
	TicketUpdated      Subject = "tickets.updated"
	OrderCreated       Subject = "orders.created"
	OrderCancelled     Subject = "orders.cancelled"
	OrderUpdated       Subject = "orders.updated"
	ExpirationComplete Subject = "expiration.complete"
	PaymentCreated     Subject = "payments.created"
)

// ConsumedSubjects are the subjects this service subscribes to.
var ConsumedSubjects = []Subject{
	TicketCreated,
	TicketUpdated,
	ExpirationComplete,
	PaymentCreated,
}

// PublishedSubjects are the subjects this service emits through the outbox.
var PublishedSubjects = []Subject{
	OrderCreated,
	OrderCancelled,
	OrderUpdated,
}

func (s Subject) String() string {
	return string(s)
}

// Stream returns the stream name a subject belongs to, e.g. "tickets" for
// "tickets.created".
func (s Subject) Stream() string {
	if i := strings.IndexByte(string(s), '.'); i > 0 {
		return string(s[:i])
	}
	return string(s)
}

// Durable returns the durable consumer name for a subject, e.g.
// "TICKETS_CREATED" for "tickets.created".
func (s Subject) Durable() string {
	return strings.ToUpper(strings.ReplaceAll(string(s), ".", "_"))
}
