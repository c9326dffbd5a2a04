package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"

	"order-system/internal/status"
	"order-system/models"
)

type TicketStore struct {
	db *DB
}

func NewTicketStore(db *DB) *TicketStore {
	return &TicketStore{db: db}
}

func (s *TicketStore) FindByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := s.db.NewQuery(`SELECT id, title, price, version FROM ticket WHERE id={:id}`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find ticket %d: %w", id, err)
	}
	return &t, nil
}

// FindByIDForUpdate row-locks the ticket so two concurrently delivered
// messages for the same ticket cannot both pass the version check before
// either commits.
func (s *TicketStore) FindByIDForUpdate(ctx context.Context, tx dbx.Builder, id int64) (*models.Ticket, error) {
	var t models.Ticket
	err := tx.NewQuery(`SELECT id, title, price, version FROM ticket WHERE id={:id} FOR UPDATE`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lock ticket %d: %w", id, err)
	}
	return &t, nil
}

func (s *TicketStore) Insert(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	_, err := tx.Insert("ticket", dbx.Params{
		"id":      t.ID,
		"title":   t.Title,
		"price":   t.Price,
		"version": t.Version,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store: insert ticket %d: %w", t.ID, err)
	}
	return nil
}

// UpdateVersioned applies a title/price change together with the version it
// belongs to. Callers have already verified the version is stored+1 under a
// row lock.
func (s *TicketStore) UpdateVersioned(ctx context.Context, tx dbx.Builder, t *models.Ticket) error {
	_, err := tx.NewQuery(`UPDATE ticket SET title={:title}, price={:price}, version={:version}, updated_at=NOW() WHERE id={:id}`).
		Bind(dbx.Params{
			"id":      t.ID,
			"title":   t.Title,
			"price":   t.Price,
			"version": t.Version,
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("store: update ticket %d to version %d: %w", t.ID, t.Version, err)
	}
	return nil
}
