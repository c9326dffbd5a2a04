package store

import (
	"context"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pocketbase/dbx"
)

// Open connects to Postgres and verifies the connection. The returned handle
// is injected into the stores; there are no package-level singletons.
func Open(databaseURL string) (*DB, error) {
	db, err := dbx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.DB().Ping(); err != nil {
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	return &DB{db}, nil
}

type DB struct {
	*dbx.DB
}

// RunInTx runs fn inside a database transaction. Every state mutation in
// this service, including its paired outbox write, goes through here.
func (d *DB) RunInTx(ctx context.Context, fn func(tx *dbx.Tx) error) error {
	return d.TransactionalContext(ctx, nil, fn)
}

func (d *DB) HealthCheck(ctx context.Context) error {
	if err := d.DB.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("store: health check failed: %w", err)
	}
	return nil
}
