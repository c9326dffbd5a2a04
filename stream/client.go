package stream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client binds this process to the durable event channel. Each subject is
// backed by one Redis stream; a consumer group on that stream is the queue
// group, so every entry is delivered to exactly one group member. Pending
// entries survive restarts, which is what makes a group binding durable.
type Client struct {
	rdb      redis.Cmdable
	opts     Options
	consumer string

	now func() time.Time
}

type Options struct {
	// AckWait is how long a delivered entry may stay unacknowledged before
	// it is considered abandoned and redelivered to the group.
	AckWait time.Duration
	// PollInterval bounds the blocking read and the redelivery scans.
	PollInterval time.Duration
	// MaxDeliver dead-letters an entry after this many deliveries. Zero
	// disables the limit.
	MaxDeliver int
	// MaxInflight caps concurrently running handlers per subscription.
	MaxInflight int
	// BatchSize is the read/claim batch per poll.
	BatchSize int
	// Consumer names this group member; defaults to hostname plus a random
	// suffix so replicas never collide.
	Consumer string
}

func New(rdb redis.Cmdable, opts Options) *Client {
	if opts.AckWait <= 0 {
		opts.AckWait = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.MaxInflight <= 0 {
		opts.MaxInflight = 64
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	consumer := opts.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	return &Client{rdb: rdb, opts: opts, consumer: consumer, now: time.Now}
}

// EnsureStream verifies that the key behind each subject, if present, really
// is a stream. Missing keys are fine: XADD and group creation both create
// the stream. A key of the wrong type is a deployment fault and is fatal.
func (c *Client) EnsureStream(ctx context.Context, subjects ...string) error {
	for _, subj := range subjects {
		_, err := c.rdb.XInfoStream(ctx, subj).Result()
		if err == nil || isNoSuchKey(err) {
			continue
		}
		return fmt.Errorf("stream: inspect %q: %w", subj, err)
	}
	return nil
}

// EnsureConsumer finds-or-creates the durable consumer group for a subject.
// The lookup-before-create keeps restarts and replicas from racing into an
// error path; a BUSYGROUP on create means another replica won the race.
func (c *Client) EnsureConsumer(ctx context.Context, subject, group string) error {
	groups, err := c.rdb.XInfoGroups(ctx, subject).Result()
	if err == nil {
		for _, g := range groups {
			if g.Name == group {
				slog.Info("consumer group found", "subject", subject, "group", group)
				return nil
			}
		}
	} else if !isNoSuchKey(err) {
		return fmt.Errorf("stream: list groups of %q: %w", subject, err)
	}

	if err := c.rdb.XGroupCreateMkStream(ctx, subject, group, "0").Err(); err != nil && !isBusyGroup(err) {
		return fmt.Errorf("stream: create group %q on %q: %w", group, subject, err)
	}
	slog.Info("consumer group created", "subject", subject, "group", group)
	return nil
}

// Publish appends an entry to the subject's stream and returns the assigned
// sequence (the stream entry id).
func (c *Client) Publish(ctx context.Context, subject string, payload []byte) (string, error) {
	seq, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: subject,
		Values: map[string]any{"data": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("stream: publish to %q: %w", subject, err)
	}
	slog.Debug("published", "subject", subject, "seq", seq)
	return seq, nil
}

func retryKey(subject, group string) string {
	return "retry:" + subject + ":" + group
}

func deadLetterSubject(subject string) string {
	return "dead." + subject
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoSuchKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such key")
}
