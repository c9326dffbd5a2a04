package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"

	"order-system/internal/status"
	"order-system/models"
)

type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore {
	return &OrderStore{db: db}
}

// orderRow flattens the order/ticket join for scanning.
type orderRow struct {
	ID        int64              `db:"id"`
	UserID    int64              `db:"user_id"`
	TicketID  int64              `db:"ticket_id"`
	Status    models.OrderStatus `db:"status"`
	ExpiresAt time.Time          `db:"expires_at"`
	CreatedAt time.Time          `db:"created_at"`
	UpdatedAt time.Time          `db:"updated_at"`

	TkTitle   string          `db:"tk_title"`
	TkPrice   decimal.Decimal `db:"tk_price"`
	TkVersion int64           `db:"tk_version"`
}

func (r *orderRow) order() *models.Order {
	return &models.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		TicketID:  r.TicketID,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Ticket: &models.Ticket{
			ID:      r.TicketID,
			Title:   r.TkTitle,
			Price:   r.TkPrice,
			Version: r.TkVersion,
		},
	}
}

const orderSelect = `
	SELECT o.id, o.user_id, o.ticket_id, o.status, o.expires_at, o.created_at, o.updated_at,
	       t.title AS tk_title, t.price AS tk_price, t.version AS tk_version
	FROM "order" o
	JOIN ticket t ON t.id = o.ticket_id`

// FindByID returns the order together with its ticket snapshot.
func (s *OrderStore) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var row orderRow
	err := s.db.NewQuery(orderSelect+` WHERE o.id={:id}`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find order %d: %w", id, err)
	}
	return row.order(), nil
}

func (s *OrderStore) FindByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	var rows []orderRow
	err := s.db.NewQuery(orderSelect+` WHERE o.user_id={:user_id} ORDER BY o.created_at DESC`).
		Bind(dbx.Params{"user_id": userID}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("store: find orders for user %d: %w", userID, err)
	}
	orders := make([]*models.Order, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].order())
	}
	return orders, nil
}

// ExistsActiveForTicket reports whether a non-cancelled order already holds
// the ticket. This is the reservation check; there is deliberately no unique
// constraint backing it.
func (s *OrderStore) ExistsActiveForTicket(ctx context.Context, ticketID int64) (bool, error) {
	var exists bool
	err := s.db.NewQuery(`SELECT EXISTS(SELECT 1 FROM "order" WHERE ticket_id={:ticket_id} AND status <> {:cancelled})`).
		Bind(dbx.Params{"ticket_id": ticketID, "cancelled": models.OrderCancelledStatus}).
		WithContext(ctx).
		Row(&exists)
	if err != nil {
		return false, fmt.Errorf("store: reservation check for ticket %d: %w", ticketID, err)
	}
	return exists, nil
}

// Insert creates the order and fills in the store-assigned id and timestamps.
func (s *OrderStore) Insert(ctx context.Context, tx dbx.Builder, o *models.Order) error {
	err := tx.NewQuery(`INSERT INTO "order" (user_id, ticket_id, status, expires_at)
		VALUES ({:user_id}, {:ticket_id}, {:status}, {:expires_at})
		RETURNING id, created_at, updated_at`).
		Bind(dbx.Params{
			"user_id":    o.UserID,
			"ticket_id":  o.TicketID,
			"status":     o.Status,
			"expires_at": o.ExpiresAt,
		}).
		WithContext(ctx).
		Row(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: insert order for ticket %d: %w", o.TicketID, err)
	}
	return nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, tx dbx.Builder, orderID int64, st models.OrderStatus) error {
	_, err := tx.NewQuery(`UPDATE "order" SET status={:status}, updated_at=NOW() WHERE id={:id}`).
		Bind(dbx.Params{"id": orderID, "status": st}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("store: update order %d status to %s: %w", orderID, st, err)
	}
	return nil
}
