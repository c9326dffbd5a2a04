package services

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"

	"order-system/models"
	"order-system/store"
)

// The services depend on narrow interfaces so listeners can be exercised
// against fakes; the store package provides the real implementations.

type Transactor interface {
	RunInTx(ctx context.Context, fn func(tx *dbx.Tx) error) error
}

type TicketStore interface {
	FindByID(ctx context.Context, id int64) (*models.Ticket, error)
	FindByIDForUpdate(ctx context.Context, tx dbx.Builder, id int64) (*models.Ticket, error)
	Insert(ctx context.Context, tx dbx.Builder, t *models.Ticket) error
	UpdateVersioned(ctx context.Context, tx dbx.Builder, t *models.Ticket) error
}

type OrderStore interface {
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	FindByUser(ctx context.Context, userID int64) ([]*models.Order, error)
	ExistsActiveForTicket(ctx context.Context, ticketID int64) (bool, error)
	Insert(ctx context.Context, tx dbx.Builder, o *models.Order) error
	UpdateStatus(ctx context.Context, tx dbx.Builder, orderID int64, st models.OrderStatus) error
}

type OutboxStore interface {
	Append(ctx context.Context, tx dbx.Builder, subj models.Subject, payload []byte) error
	Unsent(ctx context.Context, limit int) ([]store.OutboxRecord, error)
	MarkSent(ctx context.Context, id int64) error
}

// Msg is the settlement surface of a delivered stream message.
type Msg interface {
	Subject() string
	Data() []byte
	Ack(ctx context.Context) error
	AckSync(ctx context.Context) error
	Nak(ctx context.Context, delay time.Duration) error
	Term(ctx context.Context) error
	InProgress(ctx context.Context) error
}

// Publisher appends an entry to the durable channel.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) (string, error)
}
