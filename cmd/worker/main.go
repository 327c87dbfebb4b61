package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kauppa/kauppa-sub000/internal/clients"
	"github.com/kauppa/kauppa-sub000/internal/config"
	"github.com/kauppa/kauppa-sub000/internal/domain"
	"github.com/kauppa/kauppa-sub000/internal/messaging"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
	"github.com/kauppa/kauppa-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load("worker")
	if err != nil {
		telemetry.NewLogger(os.Stderr, "worker", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.Service, cfg.Log.Level)

	if err := cfg.Require("KAFKA_BROKERS", "ORDERS_SERVICE_URL", "ACCOUNTS_SERVICE_URL", "EMAIL_SERVICE_URL"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, telemetry.TracerConfig{
		Service:     cfg.Service,
		Version:     cfg.Version,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := telemetry.NewHTTPClient(cfg.Client.Timeout)

	shipments := worker.NewShipmentHandler(clients.NewOrdersClient(cfg.Services.Orders, httpClient), logger)
	shipmentRouter := messaging.NewRouter(logger)
	for _, status := range []domain.ShipmentStatus{
		domain.ShipmentPending,
		domain.ShipmentShipping,
		domain.ShipmentDelivered,
		domain.ShipmentPickup,
		domain.ShipmentReturned,
	} {
		shipmentRouter.On(domain.ShipmentNotification{Status: status}.EventType(), shipments.Handle)
	}

	notifications := worker.NewNotificationHandler(
		clients.NewAccountClient(cfg.Services.Accounts, httpClient),
		clients.NewEmailClient(cfg.Services.Email, httpClient),
		logger,
	)
	orderRouter := messaging.NewRouter(logger)
	notifications.Register(orderRouter)

	consumers := []struct {
		consumer *messaging.Consumer
		router   *messaging.Router
	}{
		{messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ShipmentEventsTopic, cfg.Kafka.GroupID+"-shipments"), shipmentRouter},
		{messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderEventsTopic, cfg.Kafka.GroupID+"-notifications"), orderRouter},
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting worker", "brokers", cfg.Kafka.Brokers)

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failed   bool
	)
	for _, c := range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = c.consumer.Close() }()

			if err := c.consumer.Consume(ctx, c.router.Handle); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Error("consumer error", "error", err)
				failOnce.Do(func() {
					failed = true
					cancel()
				})
			}
		}()
	}
	wg.Wait()

	if failed {
		os.Exit(1)
	}
	logger.Info("consumers stopped")
}
