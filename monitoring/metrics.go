package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_messages_processed_total",
			Help: "Processed stream messages by settlement outcome",
		},
		[]string{"subject", "outcome"},
	)

	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stream_handle_duration_seconds",
			Help:    "Message handler duration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"subject"},
	)

	redeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_redeliveries_total",
			Help: "Entries claimed back for redelivery",
		},
		[]string{"subject"},
	)

	outboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_backlog",
			Help: "Outbox records not yet published",
		},
	)

	ordersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_transitions_total",
			Help: "Order state transitions",
		},
		[]string{"status"},
	)
)

func TrackMessage(subject, outcome string) {
	messagesProcessed.WithLabelValues(subject, outcome).Inc()
}

func TrackHandleDuration(subject string, d time.Duration) {
	handleDuration.WithLabelValues(subject).Observe(d.Seconds())
}

func TrackRedelivery(subject string) {
	redeliveries.WithLabelValues(subject).Inc()
}

func TrackOrderTransition(status string) {
	ordersTotal.WithLabelValues(status).Inc()
}

type UnsentCounter interface {
	CountUnsent(ctx context.Context) (int64, error)
}

type Monitor struct {
	outbox UnsentCounter
}

// NewMonitor starts a background collector for the outbox backlog gauge.
func NewMonitor(ctx context.Context, outbox UnsentCounter) *Monitor {
	m := &Monitor{outbox: outbox}
	go m.collectMetrics(ctx)
	return m
}

func (m *Monitor) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if count, err := m.outbox.CountUnsent(ctx); err == nil {
				outboxBacklog.Set(float64(count))
			}
		}
	}
}
