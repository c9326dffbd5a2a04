package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"order-system/monitoring"
)

// Handler processes one delivered message. Handlers run concurrently, up to
// MaxInflight per subscription; ordering across handlers is not guaranteed,
// which is why consumers rely on per-entity versions instead of delivery
// order.
type Handler func(ctx context.Context, m *Msg)

// Subscribe binds to the durable consumer group for subject and dispatches
// every delivered entry to h without waiting for completion. It blocks until
// ctx is cancelled (returns nil) or the read loop fails (returns the error);
// the caller must treat that error as a process-level fault.
func (c *Client) Subscribe(ctx context.Context, subject, group string, h Handler) error {
	s := &subscription{
		c:       c,
		subject: subject,
		group:   group,
		handler: h,
		sem:     make(chan struct{}, c.opts.MaxInflight),
	}
	slog.Info("subscription opened", "subject", subject, "group", group, "consumer", c.consumer)

	for {
		if ctx.Err() != nil {
			slog.Info("subscription closed", "subject", subject)
			return nil
		}

		s.redeliverDue(ctx)
		s.redeliverAbandoned(ctx)

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: c.consumer,
			Streams:  []string{subject, ">"},
			Count:    int64(c.opts.BatchSize),
			Block:    c.opts.PollInterval,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("subscription closed", "subject", subject)
				return nil
			}
			return fmt.Errorf("stream: read %q as %q: %w", subject, group, err)
		}

		for _, st := range streams {
			for _, xm := range st.Messages {
				s.dispatch(ctx, xm, 1)
			}
		}
	}
}

type subscription struct {
	c       *Client
	subject string
	group   string
	handler Handler
	sem     chan struct{}
}

// redeliverDue claims entries whose nak delay has elapsed.
func (s *subscription) redeliverDue(ctx context.Context) {
	key := retryKey(s.subject, s.group)
	due, err := s.c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatMillis(s.c.now()),
		Count: int64(s.c.opts.BatchSize),
	}).Result()
	if err != nil {
		slog.Error("scan nak schedule", "subject", s.subject, "error", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.claimAndDispatch(ctx, due, 0)
	if err := s.c.rdb.ZRem(ctx, key, toMembers(due)...).Err(); err != nil {
		slog.Error("clear nak schedule", "subject", s.subject, "error", err)
	}
}

// redeliverAbandoned claims entries whose consumer stopped acknowledging:
// a crashed replica, or a handler that never settled its message.
func (s *subscription) redeliverAbandoned(ctx context.Context) {
	pending, err := s.c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.subject,
		Group:  s.group,
		Idle:   s.c.opts.AckWait,
		Start:  "-",
		End:    "+",
		Count:  int64(s.c.opts.BatchSize),
	}).Result()
	if err != nil {
		slog.Error("scan pending entries", "subject", s.subject, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	s.claimAndDispatch(ctx, ids, s.c.opts.AckWait)
}

// claimAndDispatch takes over the given pending entries and hands them to
// the handler. Entries past the delivery limit go to the dead-letter stream
// instead. minIdle guards against two group members claiming the same batch.
func (s *subscription) claimAndDispatch(ctx context.Context, ids []string, minIdle time.Duration) {
	counts := s.deliveryCounts(ctx, ids)

	var claim []string
	for _, id := range ids {
		if s.c.opts.MaxDeliver > 0 && counts[id] >= int64(s.c.opts.MaxDeliver) {
			s.deadLetter(ctx, id, counts[id])
			continue
		}
		claim = append(claim, id)
	}
	if len(claim) == 0 {
		return
	}

	claimed, err := s.c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   s.subject,
		Group:    s.group,
		Consumer: s.c.consumer,
		MinIdle:  minIdle,
		Messages: claim,
	}).Result()
	if err != nil {
		slog.Error("claim entries", "subject", s.subject, "error", err)
		return
	}
	for _, xm := range claimed {
		monitoring.TrackRedelivery(s.subject)
		s.dispatch(ctx, xm, counts[xm.ID]+1)
	}
}

func (s *subscription) deliveryCounts(ctx context.Context, ids []string) map[string]int64 {
	counts := make(map[string]int64, len(ids))
	pending, err := s.c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: s.subject,
		Group:  s.group,
		Start:  "-",
		End:    "+",
		Count:  int64(s.c.opts.BatchSize * 4),
	}).Result()
	if err != nil {
		slog.Error("read delivery counts", "subject", s.subject, "error", err)
		return counts
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, p := range pending {
		if want[p.ID] {
			counts[p.ID] = p.RetryCount
		}
	}
	return counts
}

// deadLetter copies a poison entry to dead.<subject> and acks the original.
func (s *subscription) deadLetter(ctx context.Context, id string, deliveries int64) {
	slog.Warn("delivery limit exceeded, dead-lettering",
		"subject", s.subject, "id", id, "deliveries", deliveries)

	entries, err := s.c.rdb.XRange(ctx, s.subject, id, id).Result()
	if err != nil {
		slog.Error("read entry for dead-letter", "subject", s.subject, "id", id, "error", err)
		return
	}
	if len(entries) > 0 {
		if _, err := s.c.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: deadLetterSubject(s.subject),
			Values: entries[0].Values,
		}).Result(); err != nil {
			slog.Error("write dead-letter entry", "subject", s.subject, "id", id, "error", err)
			return
		}
	}
	if err := s.c.rdb.XAck(ctx, s.subject, s.group, id).Err(); err != nil {
		slog.Error("ack dead-lettered entry", "subject", s.subject, "id", id, "error", err)
	}
	monitoring.TrackMessage(s.subject, "dead")
}

// dispatch hands one entry to the handler on its own goroutine, bounded by
// the inflight semaphore. The read loop does not wait for completion.
func (s *subscription) dispatch(ctx context.Context, xm redis.XMessage, deliveries int64) {
	data, ok := xm.Values["data"].(string)
	if !ok {
		slog.Warn("entry without data field", "subject", s.subject, "id", xm.ID)
		if err := s.c.rdb.XAck(ctx, s.subject, s.group, xm.ID).Err(); err != nil {
			slog.Error("ack malformed entry", "subject", s.subject, "id", xm.ID, "error", err)
		}
		monitoring.TrackMessage(s.subject, "term")
		return
	}

	m := &Msg{
		subject:    s.subject,
		id:         xm.ID,
		data:       []byte(data),
		deliveries: deliveries,
		group:      s.group,
		c:          s.c,
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	go func() {
		defer func() { <-s.sem }()
		defer func() {
			if r := recover(); r != nil {
				// leave the entry pending; the AckWait reclaim retries it
				slog.Error("handler panic", "subject", s.subject, "id", m.id, "panic", r)
			}
		}()
		start := time.Now()
		s.handler(ctx, m)
		monitoring.TrackHandleDuration(s.subject, time.Since(start))
		monitoring.TrackMessage(s.subject, m.Outcome())
	}()
}

func toMembers(ids []string) []any {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}
