package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"

	EventsSQS   = "sqs"
	EventsKafka = "kafka"
	EventsNone  = "none"
)

// Config is the runtime configuration shared by the api and worker binaries.
// Values come from defaults, then the optional CONFIG_FILE, then the environment.
type Config struct {
	ServiceName string `yaml:"service_name"`
	LogLevel    string `yaml:"log_level"`
	ListenAddr  string `yaml:"listen_addr"`
	RunLocal    bool   `yaml:"run_local"`

	StoreBackend     string        `yaml:"store_backend"`
	OrdersTable      string        `yaml:"orders_table"`
	IdempotencyTable string        `yaml:"idempotency_table"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
	DatabaseURL      string        `yaml:"database_url"`

	// OrdersQueueURL carries gateway confirmations from the webhook to the worker.
	OrdersQueueURL string `yaml:"orders_queue_url"`

	EventsBackend  string `yaml:"events_backend"`
	EventsQueueURL string `yaml:"events_queue_url"`
	KafkaBrokers   string `yaml:"kafka_brokers"`
	KafkaTopic     string `yaml:"kafka_topic"`

	PaystackPublicKey string        `yaml:"paystack_public_key"`
	PaystackSecretKey string        `yaml:"paystack_secret_key"`
	PaystackBaseURL   string        `yaml:"paystack_base_url"`
	GatewayTimeout    time.Duration `yaml:"gateway_timeout"`

	Currency string   `yaml:"currency"`
	AdminIDs []string `yaml:"admin_ids"`

	JaegerEndpoint   string `yaml:"jaeger_endpoint"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServiceName:      "jojo-shop-orders",
		LogLevel:         "info",
		ListenAddr:       ":8080",
		StoreBackend:     StoreDynamoDB,
		OrdersTable:      "orders",
		IdempotencyTable: "idempotency",
		IdempotencyTTL:   48 * time.Hour,
		EventsBackend:    EventsNone,
		KafkaTopic:       "order-events",
		PaystackBaseURL:  "https://api.paystack.co",
		GatewayTimeout:   10 * time.Second,
		Currency:         "NGN",
		MetricsNamespace: "JojoShop/Orders",
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SERVICE_NAME", &c.ServiceName)
	str("LOG_LEVEL", &c.LogLevel)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("STORE_BACKEND", &c.StoreBackend)
	str("ORDERS_TABLE", &c.OrdersTable)
	str("IDEMPOTENCY_TABLE", &c.IdempotencyTable)
	str("DATABASE_URL", &c.DatabaseURL)
	str("ORDERS_QUEUE_URL", &c.OrdersQueueURL)
	str("EVENTS_BACKEND", &c.EventsBackend)
	str("EVENTS_QUEUE_URL", &c.EventsQueueURL)
	str("KAFKA_BROKERS", &c.KafkaBrokers)
	str("KAFKA_TOPIC", &c.KafkaTopic)
	str("PAYSTACK_PUBLIC_KEY", &c.PaystackPublicKey)
	str("PAYSTACK_SECRET_KEY", &c.PaystackSecretKey)
	str("PAYSTACK_BASE_URL", &c.PaystackBaseURL)
	str("CURRENCY", &c.Currency)
	str("JAEGER_ENDPOINT", &c.JaegerEndpoint)
	str("METRICS_NAMESPACE", &c.MetricsNamespace)

	if v := os.Getenv("RUN_LOCAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_LOCAL: %w", err)
		}
		c.RunLocal = b
	}
	for key, dst := range map[string]*time.Duration{
		"GATEWAY_TIMEOUT": &c.GatewayTimeout,
		"IDEMPOTENCY_TTL": &c.IdempotencyTTL,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		c.AdminIDs = splitList(v)
	}
	return nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreDynamoDB:
		if c.OrdersTable == "" || c.IdempotencyTable == "" {
			return fmt.Errorf("store backend %q requires ORDERS_TABLE and IDEMPOTENCY_TABLE", c.StoreBackend)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("store backend %q requires DATABASE_URL", c.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	switch c.EventsBackend {
	case EventsNone:
	case EventsSQS:
		if c.EventsQueueURL == "" {
			return fmt.Errorf("events backend %q requires EVENTS_QUEUE_URL", c.EventsBackend)
		}
	case EventsKafka:
		if c.KafkaBrokers == "" || c.KafkaTopic == "" {
			return fmt.Errorf("events backend %q requires KAFKA_BROKERS and KAFKA_TOPIC", c.EventsBackend)
		}
	default:
		return fmt.Errorf("unknown events backend %q", c.EventsBackend)
	}

	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %s", c.GatewayTimeout)
	}
	if c.Currency == "" {
		return fmt.Errorf("currency must be set")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
