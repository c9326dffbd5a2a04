package services

import (
	"context"
	"log/slog"
	"time"
)

// OutboxForwarder drains the outbox to the durable channel. Publishing and
// marking sent are not atomic: a crash between the two re-publishes the
// record on the next run, which consumers absorb through their idempotent
// version and terminal-state checks.
type OutboxForwarder struct {
	outbox   OutboxStore
	pub      Publisher
	interval time.Duration
	batch    int
}

func NewOutboxForwarder(outbox OutboxStore, pub Publisher, interval time.Duration, batch int) *OutboxForwarder {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if batch <= 0 {
		batch = 50
	}
	return &OutboxForwarder{
		outbox:   outbox,
		pub:      pub,
		interval: interval,
		batch:    batch,
	}
}

// Run blocks until ctx is cancelled.
func (f *OutboxForwarder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Forward(ctx)
		}
	}
}

// Forward publishes pending records in insertion order. It stops at the
// first publish failure so per-subject ordering is preserved across retries.
func (f *OutboxForwarder) Forward(ctx context.Context) {
	records, err := f.outbox.Unsent(ctx, f.batch)
	if err != nil {
		slog.Error("load outbox", "error", err)
		return
	}
	for _, rec := range records {
		seq, err := f.pub.Publish(ctx, rec.Subject, rec.Payload)
		if err != nil {
			slog.Error("publish outbox record", "id", rec.ID, "subject", rec.Subject, "error", err)
			return
		}
		if err := f.outbox.MarkSent(ctx, rec.ID); err != nil {
			slog.Error("mark outbox record sent", "id", rec.ID, "error", err)
			return
		}
		slog.Debug("outbox record published", "id", rec.ID, "subject", rec.Subject, "seq", seq)
	}
}
