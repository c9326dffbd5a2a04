package stream

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Msg is one delivered entry. A handler must settle it exactly one way:
// Ack/AckSync (done), Term (done, never retry) or Nak (retry later). An
// unsettled message stays pending and is redelivered after AckWait, so a
// crash mid-handler loses nothing. Settlement calls after the first are
// no-ops.
type Msg struct {
	subject    string
	id         string
	data       []byte
	deliveries int64
	group      string

	c       *Client
	settled atomic.Bool
	outcome atomic.Value
}

func (m *Msg) Subject() string {
	return m.subject
}

func (m *Msg) ID() string {
	return m.id
}

func (m *Msg) Data() []byte {
	return m.data
}

func (m *Msg) Deliveries() int64 {
	return m.deliveries
}

// Outcome reports how the message was settled: ack, term, nak or none.
func (m *Msg) Outcome() string {
	if v, ok := m.outcome.Load().(string); ok {
		return v
	}
	return "none"
}

func (m *Msg) settle(outcome string) bool {
	if !m.settled.CompareAndSwap(false, true) {
		return false
	}
	m.outcome.Store(outcome)
	return true
}

// Ack removes the entry from the pending list; it will never be redelivered.
func (m *Msg) Ack(ctx context.Context) error {
	if !m.settle("ack") {
		return nil
	}
	return m.c.rdb.XAck(ctx, m.subject, m.group, m.id).Err()
}

// AckSync acks and verifies the broker confirmed the entry was pending.
func (m *Msg) AckSync(ctx context.Context) error {
	if !m.settle("ack") {
		return nil
	}
	n, err := m.c.rdb.XAck(ctx, m.subject, m.group, m.id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("stream: ack of %s %s not confirmed", m.subject, m.id)
	}
	return nil
}

// Term acknowledges a message that must never be retried: wrong subject,
// undecodable payload, or an already-applied change.
func (m *Msg) Term(ctx context.Context) error {
	if !m.settle("term") {
		return nil
	}
	return m.c.rdb.XAck(ctx, m.subject, m.group, m.id).Err()
}

// Nak schedules a redelivery after delay. The entry stays pending, so the
// schedule survives a crash: a lost schedule entry only means the slower
// AckWait reclaim picks it up instead.
func (m *Msg) Nak(ctx context.Context, delay time.Duration) error {
	if !m.settle("nak") {
		return nil
	}
	eligible := m.c.now().Add(delay)
	return m.c.rdb.ZAdd(ctx, retryKey(m.subject, m.group), redis.Z{
		Score:  float64(eligible.UnixMilli()),
		Member: m.id,
	}).Err()
}

// InProgress resets the entry's idle clock, extending the redelivery
// deadline while a long transaction runs.
func (m *Msg) InProgress(ctx context.Context) error {
	return m.c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   m.subject,
		Group:    m.group,
		Consumer: m.c.consumer,
		MinIdle:  0,
		Messages: []string{m.id},
	}).Err()
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
