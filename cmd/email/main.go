package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kauppa/kauppa-sub000/internal/config"
	"github.com/kauppa/kauppa-sub000/internal/email"
	"github.com/kauppa/kauppa-sub000/internal/telemetry"
)

const outboxSize = 500

func main() {
	ctx := context.Background()

	cfg, err := config.Load("email")
	if err != nil {
		telemetry.NewLogger(os.Stderr, "email", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.Service, cfg.Log.Level)

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

	mux := http.NewServeMux()
	email.NewHandler(email.NewOutbox(outboxSize, logger), logger).Register(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      telemetry.NewHTTPHandler(mux, cfg.Service),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting email service", "port", cfg.Server.Port)
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
