package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "orders-service", cfg.QueueGroup)
	assert.Equal(t, 5*time.Second, cfg.NakDelay)
	assert.Equal(t, 30*time.Second, cfg.AckWait)
	assert.Equal(t, 15*time.Minute, cfg.ReservationWindow)
	assert.Equal(t, 200*time.Millisecond, cfg.OutboxInterval)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Equal(t, 10, cfg.MaxDeliver)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("QUEUE_GROUP", "orders-staging")
	t.Setenv("NACK_DELAY", "2s")
	t.Setenv("RESERVATION_WINDOW", "1m")
	t.Setenv("STREAM_MAX_DELIVER", "3")
	t.Setenv("ENABLE_METRICS", "false")

	cfg := LoadConfig()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "orders-staging", cfg.QueueGroup)
	assert.Equal(t, 2*time.Second, cfg.NakDelay)
	assert.Equal(t, time.Minute, cfg.ReservationWindow)
	assert.Equal(t, 3, cfg.MaxDeliver)
	assert.False(t, cfg.EnableMetrics)
}

func TestLoadConfig_BadValuesFallBack(t *testing.T) {
	t.Setenv("STREAM_MAX_DELIVER", "lots")
	t.Setenv("ACK_WAIT", "soon")
	t.Setenv("ENABLE_METRICS", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.MaxDeliver)
	assert.Equal(t, 30*time.Second, cfg.AckWait)
	assert.True(t, cfg.EnableMetrics)
}
