package status

import "errors"

var (
	ErrInvalidTicketID = errors.New("order: invalid ticket id")
	ErrTicketNotFound  = errors.New("order: ticket not found")
	ErrTicketReserved  = errors.New("order: ticket is already reserved")
	ErrOrderNotFound   = errors.New("order: order not found")
	ErrNotOrderOwner   = errors.New("order: order belongs to another user")

	ErrTicketExists = errors.New("ticket: ticket already exists")
	ErrStaleVersion = errors.New("ticket: version already applied")
	ErrVersionGap   = errors.New("ticket: version is not consecutive")

	ErrMalformedMessage = errors.New("events: malformed message payload")
)
