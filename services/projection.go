package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"

	"order-system/internal/status"
	"order-system/models"
)

// TicketProjection keeps the local ticket replica consistent with the
// tickets service. Deliveries may be duplicated and are unordered across
// tickets, so the payload version, not arrival order, decides what applies:
// each ticket's updates must form an unbroken chain from version 0.
type TicketProjection struct {
	db       Transactor
	tickets  TicketStore
	nakDelay time.Duration
}

func NewTicketProjection(db Transactor, tickets TicketStore, nakDelay time.Duration) *TicketProjection {
	return &TicketProjection{
		db:       db,
		tickets:  tickets,
		nakDelay: nakDelay,
	}
}

// HandleTicketCreated inserts the first version of a ticket. Creates always
// carry version 0; anything else is a producer bug, not a retryable race.
func (p *TicketProjection) HandleTicketCreated(ctx context.Context, m Msg) {
	if m.Subject() != models.TicketCreated.String() {
		slog.Warn("wrong subject", "subject", m.Subject())
		m.Term(ctx)
		return
	}
	ticket, err := models.DecodeTicket(models.TicketCreated, m.Data())
	if err != nil {
		slog.Error("decode ticket", "error", err)
		m.Term(ctx)
		return
	}
	m.InProgress(ctx)

	if ticket.Version != 0 {
		slog.Warn("create with non-zero version", "ticket", ticket.ID, "version", ticket.Version)
		m.Term(ctx)
		return
	}

	err = p.db.RunInTx(ctx, func(tx *dbx.Tx) error {
		_, err := p.tickets.FindByIDForUpdate(ctx, tx, ticket.ID)
		if err == nil {
			return status.ErrTicketExists
		}
		if !errors.Is(err, status.ErrTicketNotFound) {
			return err
		}
		return p.tickets.Insert(ctx, tx, ticket)
	})
	switch {
	case errors.Is(err, status.ErrTicketExists):
		// duplicate delivery of the create, already applied
		slog.Info("ticket already exists", "ticket", ticket.ID)
		m.Term(ctx)
	case err != nil:
		slog.Error("create ticket", "ticket", ticket.ID, "error", err)
		m.Nak(ctx, p.nakDelay)
	default:
		slog.Info("ticket created", "ticket", ticket.ID)
		if err := m.AckSync(ctx); err != nil {
			slog.Error("ack ticket create", "ticket", ticket.ID, "error", err)
		}
	}
}

// HandleTicketUpdated applies an update only when it is the immediate
// successor of the stored version. Older versions were already applied;
// newer-than-next versions wait for the missing one to arrive.
func (p *TicketProjection) HandleTicketUpdated(ctx context.Context, m Msg) {
	if m.Subject() != models.TicketUpdated.String() {
		slog.Warn("wrong subject", "subject", m.Subject())
		m.Term(ctx)
		return
	}
	ticket, err := models.DecodeTicket(models.TicketUpdated, m.Data())
	if err != nil {
		slog.Error("decode ticket", "error", err)
		m.Term(ctx)
		return
	}
	m.InProgress(ctx)

	err = p.db.RunInTx(ctx, func(tx *dbx.Tx) error {
		stored, err := p.tickets.FindByIDForUpdate(ctx, tx, ticket.ID)
		if err != nil {
			return err
		}
		if stored.Version >= ticket.Version {
			return status.ErrStaleVersion
		}
		if stored.Version+1 != ticket.Version {
			return status.ErrVersionGap
		}
		return p.tickets.UpdateVersioned(ctx, tx, ticket)
	})
	switch {
	case errors.Is(err, status.ErrStaleVersion):
		slog.Info("stale ticket version", "ticket", ticket.ID, "version", ticket.Version)
		m.Term(ctx)
	case errors.Is(err, status.ErrTicketNotFound):
		// the create may not have arrived yet
		slog.Info("ticket not created yet", "ticket", ticket.ID, "version", ticket.Version)
		m.Nak(ctx, p.nakDelay)
	case errors.Is(err, status.ErrVersionGap):
		slog.Info("ticket version gap", "ticket", ticket.ID, "version", ticket.Version)
		m.Nak(ctx, p.nakDelay)
	case err != nil:
		slog.Error("update ticket", "ticket", ticket.ID, "error", err)
		m.Nak(ctx, p.nakDelay)
	default:
		slog.Info("ticket updated", "ticket", ticket.ID, "version", ticket.Version)
		if err := m.Ack(ctx); err != nil {
			slog.Error("ack ticket update", "ticket", ticket.ID, "error", err)
		}
	}
}
