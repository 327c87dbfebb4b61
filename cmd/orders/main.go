package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/kauppa/kauppa-sub000/internal/cache"
	"github.com/kauppa/kauppa-sub000/internal/clients"
	"github.com/kauppa/kauppa-sub000/internal/config"
	"github.com/kauppa/kauppa-sub000/internal/messaging"
	"github.com/kauppa/kauppa-sub000/internal/orders"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load("orders")
	if err != nil {
		telemetry.NewLogger(os.Stderr, "orders", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.Service, cfg.Log.Level)

	if err := cfg.Require("PRODUCTS_SERVICE_URL", "TAX_SERVICE_URL", "SHIPMENTS_SERVICE_URL"); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

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
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(cfg.Service, cfg.Version)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	var store orders.Store
	if cfg.Postgres.URL != "" {
		db, err := telemetry.OpenDB(ctx, cfg.Postgres.URL, "orders")
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		store = orders.NewOrderRepository(db)
	} else {
		logger.Warn("POSTGRES_URL not set, keeping orders in memory")
		store = orders.NewMemoryStore()
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		store = orders.NewCachedStore(store, cache.NewRedisCache(redisClient, cfg.Service), cfg.Redis.TTL, logger)
	}

	httpClient := telemetry.NewHTTPClient(cfg.Client.Timeout)

	deps := orders.Deps{
		Store:     store,
		Products:  clients.NewProductClient(cfg.Services.Products, httpClient),
		Tax:       clients.NewTaxClient(cfg.Services.Tax, httpClient),
		Shipments: clients.NewShipmentClient(cfg.Services.Shipments, httpClient),
		Logger:    logger,
	}
	if cfg.Services.Coupons != "" {
		deps.Coupons = clients.NewBalanceClient(clients.KindCoupons, cfg.Services.Coupons, httpClient)
	}
	if cfg.Services.GiftCards != "" {
		deps.GiftCards = clients.NewBalanceClient(clients.KindGiftCards, cfg.Services.GiftCards, httpClient)
	}
	if cfg.Services.Accounts != "" {
		deps.Accounts = clients.NewAccountClient(cfg.Services.Accounts, httpClient)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		deps.Publisher = producer
	}

	service, err := orders.NewService(deps)
	if err != nil {
		logger.Error("failed to create order service", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	orders.NewHandler(service, logger).Register(mux)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      telemetry.NewHTTPHandler(mux, cfg.Service),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
