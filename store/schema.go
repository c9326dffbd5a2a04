package store

import (
	"fmt"
)

// Migrate creates the tables this service owns. Idempotent, runs on every
// startup before any listener is bound.
func Migrate(db *DB) error {
	_, err := db.NewQuery(`
		CREATE TABLE IF NOT EXISTS ticket (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS "order" (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			ticket_id BIGINT NOT NULL REFERENCES ticket(id),
			status TEXT NOT NULL DEFAULT 'created',
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS order_ticket_status_idx ON "order" (ticket_id, status);

		CREATE TABLE IF NOT EXISTS outbox (
			id BIGSERIAL PRIMARY KEY,
			subject TEXT NOT NULL,
			payload JSONB NOT NULL,
			sent_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS outbox_unsent_idx ON outbox (id) WHERE sent_at IS NULL;
	`).Execute()
	if err != nil {
		return fmt.Errorf("store: migrate schema: %w", err)
	}
	return nil
}
