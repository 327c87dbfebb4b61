package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultClientTimeout   = 10 * time.Second
	defaultCacheTTL        = 5 * time.Minute
	defaultOrderTopic      = "order.events"
	defaultShipmentTopic   = "shipment.events"
)

var defaultPorts = map[string]string{
	"gateway":  "8080",
	"orders":   "8081",
	"products": "8082",
	"worker":   "8083",
	"email":    "8084",
}

// Config captures runtime configuration organised by concern. Every service
// binary loads the same structure and requires the fields it uses.
type Config struct {
	Service   string          `yaml:"-"`
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Services  ServiceURLs     `yaml:"services"`
	Client    ClientConfig    `yaml:"client"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// SampleRatio is the share of root traces kept, in [0, 1].
	SampleRatio float64 `yaml:"sample_ratio"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	OrderEventsTopic    string   `yaml:"order_events_topic"`
	ShipmentEventsTopic string   `yaml:"shipment_events_topic"`
	GroupID             string   `yaml:"group_id"`
}

// ServiceURLs are base URLs of collaborating services.
type ServiceURLs struct {
	Orders    string `yaml:"orders"`
	Products  string `yaml:"products"`
	Tax       string `yaml:"tax"`
	Coupons   string `yaml:"coupons"`
	GiftCards string `yaml:"gift_cards"`
	Shipments string `yaml:"shipments"`
	Accounts  string `yaml:"accounts"`
	Email     string `yaml:"email"`
}

type ClientConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// ValidationError lists the environment variables a service needs but did
// not get.
type ValidationError struct {
	Service string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required configuration: %s", e.Service, strings.Join(e.Missing, ", "))
}

type options struct {
	lookup func(string) (string, bool)
	file   string
}

type Option func(*options)

// WithEnvMap replaces the process environment, mostly for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *options) {
		o.lookup = func(key string) (string, bool) {
			v, ok := values[key]
			return v, ok
		}
	}
}

// WithFile reads a YAML file before applying environment overrides.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// Load builds the configuration for service from defaults, an optional YAML
// file (CONFIG_FILE) and environment variables, in increasing precedence.
func Load(service string, opts ...Option) (Config, error) {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	if o.file == "" {
		o.file, _ = o.lookup("CONFIG_FILE")
	}

	cfg := defaults(service)
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", o.file, err)
		}
	}

	env := envReader{lookup: o.lookup}
	cfg.Version = env.string("SERVICE_VERSION", cfg.Version)
	cfg.Server.Port = env.string("PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = env.duration("HTTP_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = env.duration("HTTP_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Log.Level = env.string("LOG_LEVEL", cfg.Log.Level)
	cfg.Telemetry.OTLPEndpoint = env.string("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.SampleRatio = env.ratio("OTEL_TRACES_SAMPLER_ARG", cfg.Telemetry.SampleRatio)
	cfg.Postgres.URL = env.string("POSTGRES_URL", cfg.Postgres.URL)
	cfg.Redis.Addr = env.string("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = env.string("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = env.int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTL = env.duration("CACHE_TTL", cfg.Redis.TTL)
	cfg.Kafka.Brokers = env.csv("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.OrderEventsTopic = env.string("ORDER_EVENTS_TOPIC", cfg.Kafka.OrderEventsTopic)
	cfg.Kafka.ShipmentEventsTopic = env.string("SHIPMENT_EVENTS_TOPIC", cfg.Kafka.ShipmentEventsTopic)
	cfg.Kafka.GroupID = env.string("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Services.Orders = env.string("ORDERS_SERVICE_URL", cfg.Services.Orders)
	cfg.Services.Products = env.string("PRODUCTS_SERVICE_URL", cfg.Services.Products)
	cfg.Services.Tax = env.string("TAX_SERVICE_URL", cfg.Services.Tax)
	cfg.Services.Coupons = env.string("COUPONS_SERVICE_URL", cfg.Services.Coupons)
	cfg.Services.GiftCards = env.string("GIFT_CARDS_SERVICE_URL", cfg.Services.GiftCards)
	cfg.Services.Shipments = env.string("SHIPMENTS_SERVICE_URL", cfg.Services.Shipments)
	cfg.Services.Accounts = env.string("ACCOUNTS_SERVICE_URL", cfg.Services.Accounts)
	cfg.Services.Email = env.string("EMAIL_SERVICE_URL", cfg.Services.Email)
	cfg.Client.Timeout = env.duration("HTTP_CLIENT_TIMEOUT", cfg.Client.Timeout)

	if len(env.invalid) > 0 {
		return Config{}, fmt.Errorf("%s: invalid configuration values: %s", service, strings.Join(env.invalid, ", "))
	}
	return cfg, nil
}

func defaults(service string) Config {
	return Config{
		Service: service,
		Version: "0.1.0",
		Server: ServerConfig{
			Port:            defaultPorts[service],
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Log:       LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{SampleRatio: 1},
		Redis:     RedisConfig{TTL: defaultCacheTTL},
		Kafka:     KafkaConfig{OrderEventsTopic: defaultOrderTopic, ShipmentEventsTopic: defaultShipmentTopic, GroupID: service},
		Client:    ClientConfig{Timeout: defaultClientTimeout},
	}
}

// Require returns a ValidationError naming every listed variable that has no
// value.
func (c Config) Require(names ...string) error {
	values := map[string]bool{
		"POSTGRES_URL":           c.Postgres.URL != "",
		"REDIS_ADDR":             c.Redis.Addr != "",
		"KAFKA_BROKERS":          len(c.Kafka.Brokers) > 0,
		"ORDERS_SERVICE_URL":     c.Services.Orders != "",
		"PRODUCTS_SERVICE_URL":   c.Services.Products != "",
		"TAX_SERVICE_URL":        c.Services.Tax != "",
		"COUPONS_SERVICE_URL":    c.Services.Coupons != "",
		"GIFT_CARDS_SERVICE_URL": c.Services.GiftCards != "",
		"SHIPMENTS_SERVICE_URL":  c.Services.Shipments != "",
		"ACCOUNTS_SERVICE_URL":   c.Services.Accounts != "",
		"EMAIL_SERVICE_URL":      c.Services.Email != "",
	}
	var missing []string
	for _, name := range names {
		if !values[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &ValidationError{Service: c.Service, Missing: missing}
}

type envReader struct {
	lookup  func(string) (string, bool)
	invalid []string
}

func (e *envReader) string(key, fallback string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v := e.string(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return d
}

func (e *envReader) int(key string, fallback int) int {
	v := e.string(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return n
}

func (e *envReader) ratio(key string, fallback float64) float64 {
	v := e.string(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		e.invalid = append(e.invalid, key)
		return fallback
	}
	return f
}

func (e *envReader) csv(key string, fallback []string) []string {
	v := e.string(key, "")
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
