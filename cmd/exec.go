package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"order-system/config"
	"order-system/handlers"
	"order-system/models"
	"order-system/monitoring"
	"order-system/services"
	"order-system/store"
	"order-system/stream"
	"order-system/utils"
)

// Start wires the process: store, durable channel bindings, listeners,
// outbox forwarder and the HTTP surface. Binding errors are fatal; a failed
// subscription after startup brings the process down rather than dropping a
// subject silently.
func Start() error {
	cfg := config.LoadConfig()

	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	slog.Info("connected to redis", "url", cfg.RedisURL)

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		return err
	}
	slog.Info("database connected and migrated")

	ticketStore := store.NewTicketStore(db)
	orderStore := store.NewOrderStore(db)
	outboxStore := store.NewOutboxStore(db)

	sc := stream.New(redisClient, stream.Options{
		AckWait:      cfg.AckWait,
		PollInterval: cfg.PollInterval,
		MaxDeliver:   cfg.MaxDeliver,
		MaxInflight:  cfg.MaxInflight,
		BatchSize:    cfg.BatchSize,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// durable infrastructure must exist before anything runs
	all := make([]string, 0, len(models.ConsumedSubjects)+len(models.PublishedSubjects))
	for _, s := range append(append([]models.Subject{}, models.ConsumedSubjects...), models.PublishedSubjects...) {
		all = append(all, s.String())
	}
	if err := sc.EnsureStream(ctx, all...); err != nil {
		return err
	}
	for _, subj := range models.ConsumedSubjects {
		if err := sc.EnsureConsumer(ctx, subj.String(), cfg.QueueGroup); err != nil {
			return err
		}
	}

	projection := services.NewTicketProjection(db, ticketStore, cfg.NakDelay)
	orderEvents := services.NewOrderEvents(db, orderStore, outboxStore, cfg.NakDelay)
	orderService := services.NewOrderService(db, orderStore, ticketStore, outboxStore, cfg.ReservationWindow)
	forwarder := services.NewOutboxForwarder(outboxStore, sc, cfg.OutboxInterval, cfg.OutboxBatchSize)
	monitoring.NewMonitor(ctx, outboxStore)

	faults := make(chan error, len(models.ConsumedSubjects)+1)
	subscribe := func(subj models.Subject, h func(context.Context, services.Msg)) {
		go func() {
			err := sc.Subscribe(ctx, subj.String(), cfg.QueueGroup, func(ctx context.Context, m *stream.Msg) {
				h(ctx, m)
			})
			if err != nil {
				faults <- err
			}
		}()
	}
	subscribe(models.TicketCreated, projection.HandleTicketCreated)
	subscribe(models.TicketUpdated, projection.HandleTicketUpdated)
	subscribe(models.ExpirationComplete, orderEvents.HandleExpirationComplete)
	subscribe(models.PaymentCreated, orderEvents.HandlePaymentCreated)

	go forwarder.Run(ctx)

	e := echo.New()
	orderHandler := handlers.NewOrderHandler(orderService)
	orderHandler.Register(e, cfg.JWTSecret)
	e.GET("/health", handlers.Health(db, func() error {
		return utils.RedisHealthCheck(redisClient)
	}))
	if cfg.EnableMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}
	go func() {
		slog.Info("http server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			faults <- fmt.Errorf("http server: %w", err)
		}
	}()

	var fault error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case fault = <-faults:
		slog.Error("process fault", "error", fault)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	return fault
}
