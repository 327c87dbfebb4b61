package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("applies service defaults", func(t *testing.T) {
		cfg, err := Load("orders", WithEnvMap(map[string]string{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Server.Port != "8081" {
			t.Errorf("expected port 8081, got %s", cfg.Server.Port)
		}
		if cfg.Kafka.OrderEventsTopic != "order.events" {
			t.Errorf("expected order.events, got %s", cfg.Kafka.OrderEventsTopic)
		}
		if cfg.Kafka.GroupID != "orders" {
			t.Errorf("expected group id orders, got %s", cfg.Kafka.GroupID)
		}
		if cfg.Redis.TTL != 5*time.Minute {
			t.Errorf("expected ttl 5m, got %s", cfg.Redis.TTL)
		}
	})

	t.Run("reads environment overrides", func(t *testing.T) {
		cfg, err := Load("worker", WithEnvMap(map[string]string{
			"KAFKA_BROKERS":       "k1:9092, k2:9092,",
			"CACHE_TTL":           "30s",
			"REDIS_DB":            "2",
			"ORDERS_SERVICE_URL":  "http://orders:8081",
			"HTTP_CLIENT_TIMEOUT": "3s",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"k1:9092", "k2:9092"}) {
			t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
		}
		if cfg.Redis.TTL != 30*time.Second || cfg.Redis.DB != 2 {
			t.Errorf("unexpected redis config: %+v", cfg.Redis)
		}
		if cfg.Services.Orders != "http://orders:8081" {
			t.Errorf("unexpected orders url: %s", cfg.Services.Orders)
		}
		if cfg.Client.Timeout != 3*time.Second {
			t.Errorf("expected 3s client timeout, got %s", cfg.Client.Timeout)
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		_, err := Load("orders", WithEnvMap(map[string]string{"CACHE_TTL": "soon"}))
		if err == nil {
			t.Fatal("expected error for malformed duration")
		}
	})

	t.Run("sample ratio", func(t *testing.T) {
		cfg, err := Load("orders", WithEnvMap(map[string]string{"OTEL_TRACES_SAMPLER_ARG": "0.25"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Telemetry.SampleRatio != 0.25 {
			t.Errorf("expected sample ratio 0.25, got %v", cfg.Telemetry.SampleRatio)
		}

		if _, err := Load("orders", WithEnvMap(map[string]string{"OTEL_TRACES_SAMPLER_ARG": "2"})); err == nil {
			t.Error("expected error for ratio above 1")
		}
	})

	t.Run("environment wins over file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "postgres:\n  url: postgres://file\nserver:\n  port: \"9000\"\nkafka:\n  brokers: [\"file:9092\"]\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := Load("orders", WithFile(path), WithEnvMap(map[string]string{"PORT": "9100"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Postgres.URL != "postgres://file" {
			t.Errorf("expected url from file, got %s", cfg.Postgres.URL)
		}
		if cfg.Server.Port != "9100" {
			t.Errorf("expected port from env, got %s", cfg.Server.Port)
		}
		if !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"file:9092"}) {
			t.Errorf("unexpected brokers: %v", cfg.Kafka.Brokers)
		}
	})
}

func TestConfig_Require(t *testing.T) {
	cfg, err := Load("orders", WithEnvMap(map[string]string{"POSTGRES_URL": "postgres://x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cfg.Require("POSTGRES_URL"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err = cfg.Require("TAX_SERVICE_URL", "POSTGRES_URL", "PRODUCTS_SERVICE_URL")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"PRODUCTS_SERVICE_URL", "TAX_SERVICE_URL"}) {
		t.Errorf("unexpected missing list: %v", verr.Missing)
	}
}
