package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"

	"order-system/models"
)

// OutboxStore holds events that must be published as a consequence of a
// local state change. The row is written in the same transaction as the
// mutation it announces; the forwarder publishes it afterwards. A publish
// can therefore happen more than once but never zero times, and consumers
// are idempotent anyway.
type OutboxStore struct {
	db *DB
}

func NewOutboxStore(db *DB) *OutboxStore {
	return &OutboxStore{db: db}
}

type OutboxRecord struct {
	ID        int64     `db:"id"`
	Subject   string    `db:"subject"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *OutboxStore) Append(ctx context.Context, tx dbx.Builder, subj models.Subject, payload []byte) error {
	_, err := tx.Insert("outbox", dbx.Params{
		"subject": subj.String(),
		"payload": payload,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store: append %s outbox record: %w", subj, err)
	}
	return nil
}

// Unsent returns pending records in insertion order.
func (s *OutboxStore) Unsent(ctx context.Context, limit int) ([]OutboxRecord, error) {
	var records []OutboxRecord
	err := s.db.NewQuery(`SELECT id, subject, payload, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT {:limit}`).
		Bind(dbx.Params{"limit": limit}).
		WithContext(ctx).
		All(&records)
	if err != nil {
		return nil, fmt.Errorf("store: load unsent outbox records: %w", err)
	}
	return records, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id int64) error {
	_, err := s.db.NewQuery(`UPDATE outbox SET sent_at=NOW() WHERE id={:id}`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return fmt.Errorf("store: mark outbox record %d sent: %w", id, err)
	}
	return nil
}

func (s *OutboxStore) CountUnsent(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.NewQuery(`SELECT COUNT(*) FROM outbox WHERE sent_at IS NULL`).
		WithContext(ctx).
		Row(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count unsent outbox records: %w", err)
	}
	return count, nil
}
