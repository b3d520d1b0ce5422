// Package config loads the storefront configuration from an optional YAML
// file overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Shipping  ShippingConfig  `yaml:"shipping"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// CheckoutLogPath is the SQLite file of the checkout audit log. Empty
	// disables the log.
	CheckoutLogPath string `yaml:"checkout_log_path"`

	DisableDBHealthcheck bool `yaml:"disable_db_healthcheck"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`

	// DatabaseURL wins over the discrete connection fields below.
	DatabaseURL      string        `yaml:"database_url"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	Name             string        `yaml:"name"`
	SSL              bool          `yaml:"ssl"`
	PoolMax          int32         `yaml:"pool_max"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`

	SQLitePath string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
	CatalogTTL     time.Duration `yaml:"catalog_ttl"`
}

type ShippingConfig struct {
	FlatFee       string `yaml:"flat_fee"`
	FreeThreshold string `yaml:"free_threshold"`
}

type EventsConfig struct {
	Broker        string        `yaml:"broker"`
	KafkaBrokers  string        `yaml:"kafka_brokers"`
	KafkaTopic    string        `yaml:"kafka_topic"`
	AMQPURL       string        `yaml:"amqp_url"`
	AMQPExchange  string        `yaml:"amqp_exchange"`
	RelayInterval time.Duration `yaml:"relay_interval"`
	RelayBatch    int           `yaml:"relay_batch"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Environment  string `yaml:"environment"`
	LogLevel     string `yaml:"log_level"`
}

// Load reads path (when non-empty), applies environment overrides and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Port = getEnv("PORT", cfg.HTTP.Port)
	cfg.HTTP.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DatabaseURL = getEnv("DATABASE_URL", cfg.Store.DatabaseURL)
	cfg.Store.Host = getEnv("DB_HOST", cfg.Store.Host)
	cfg.Store.Port = getEnvInt("DB_PORT", cfg.Store.Port)
	cfg.Store.User = getEnv("DB_USER", cfg.Store.User)
	cfg.Store.Password = getEnv("DB_PASSWORD", cfg.Store.Password)
	cfg.Store.Name = getEnv("DB_NAME", cfg.Store.Name)
	cfg.Store.SSL = getEnvBool("DB_SSL", cfg.Store.SSL)
	cfg.Store.PoolMax = int32(getEnvInt("DB_POOL_MAX", int(cfg.Store.PoolMax)))
	// DB_STATEMENT_TIMEOUT is in milliseconds.
	if ms := getEnvInt("DB_STATEMENT_TIMEOUT", 0); ms > 0 {
		cfg.Store.StatementTimeout = time.Duration(ms) * time.Millisecond
	}
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.IdempotencyTTL = getEnvDuration("IDEMPOTENCY_TTL", cfg.Redis.IdempotencyTTL)
	cfg.Redis.CatalogTTL = getEnvDuration("CATALOG_CACHE_TTL", cfg.Redis.CatalogTTL)

	cfg.Shipping.FlatFee = getEnv("SHIPPING_FLAT_FEE", cfg.Shipping.FlatFee)
	cfg.Shipping.FreeThreshold = getEnv("FREE_SHIPPING_THRESHOLD", cfg.Shipping.FreeThreshold)

	cfg.Events.Broker = getEnv("EVENTS_BROKER", cfg.Events.Broker)
	cfg.Events.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.Events.KafkaBrokers)
	cfg.Events.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.Events.KafkaTopic)
	cfg.Events.AMQPURL = getEnv("AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.Events.AMQPExchange)
	cfg.Events.RelayInterval = getEnvDuration("OUTBOX_RELAY_INTERVAL", cfg.Events.RelayInterval)
	cfg.Events.RelayBatch = getEnvInt("OUTBOX_RELAY_BATCH", cfg.Events.RelayBatch)

	cfg.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.Environment = getEnv("DEPLOYMENT_ENV", cfg.Telemetry.Environment)
	cfg.Telemetry.LogLevel = getEnv("LOG_LEVEL", cfg.Telemetry.LogLevel)

	cfg.CheckoutLogPath = getEnv("CHECKOUT_LOG_PATH", cfg.CheckoutLogPath)
	cfg.DisableDBHealthcheck = getEnvBool("DISABLE_DB_HEALTHCHECK", cfg.DisableDBHealthcheck)
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.HTTP.Port, "8080")
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Store.Driver == "" {
		if cfg.Store.DatabaseURL != "" || cfg.Store.Host != "" {
			cfg.Store.Driver = DriverPostgres
		} else {
			cfg.Store.Driver = DriverSQLite
		}
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	setDefault(&cfg.Store.Host, "localhost")
	if cfg.Store.Port == 0 {
		cfg.Store.Port = 5432
	}
	setDefault(&cfg.Store.User, "postgres")
	setDefault(&cfg.Store.Name, "regaloshop")
	setDefault(&cfg.Store.SQLitePath, "./data/storefront.db")

	if cfg.Redis.IdempotencyTTL == 0 {
		cfg.Redis.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Redis.CatalogTTL == 0 {
		cfg.Redis.CatalogTTL = 30 * time.Second
	}

	setDefault(&cfg.Shipping.FlatFee, "6.99")
	setDefault(&cfg.Shipping.FreeThreshold, "80")

	setDefault(&cfg.Events.Broker, BrokerNone)
	cfg.Events.Broker = strings.ToLower(cfg.Events.Broker)
	setDefault(&cfg.Events.KafkaTopic, "storefront.orders")
	setDefault(&cfg.Events.AMQPExchange, "storefront.orders")
	if cfg.Events.RelayInterval == 0 {
		cfg.Events.RelayInterval = 2 * time.Second
	}
	if cfg.Events.RelayBatch == 0 {
		cfg.Events.RelayBatch = 100
	}

	setDefault(&cfg.Telemetry.ServiceName, "storefront-api")
	setDefault(&cfg.Telemetry.Environment, "local")
	setDefault(&cfg.Telemetry.LogLevel, "info")
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Events.Broker {
	case BrokerNone:
	case BrokerKafka:
		if strings.TrimSpace(c.Events.KafkaBrokers) == "" {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when EVENTS_BROKER=kafka"))
		}
	case BrokerRabbitMQ:
		if c.Events.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required when EVENTS_BROKER=rabbitmq"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events broker %q", c.Events.Broker))
	}
	if _, _, err := c.Shipping.Amounts(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Amounts parses the shipping fee and the free-shipping threshold.
func (s ShippingConfig) Amounts() (fee, threshold decimal.Decimal, err error) {
	fee, err = decimal.NewFromString(s.FlatFee)
	if err != nil {
		return fee, threshold, fmt.Errorf("invalid shipping flat fee %q: %w", s.FlatFee, err)
	}
	threshold, err = decimal.NewFromString(s.FreeThreshold)
	if err != nil {
		return fee, threshold, fmt.Errorf("invalid free shipping threshold %q: %w", s.FreeThreshold, err)
	}
	if fee.IsNegative() || threshold.IsNegative() {
		return fee, threshold, errors.New("shipping amounts must not be negative")
	}
	return fee, threshold, nil
}

// PostgresDSN returns DatabaseURL or a URL built from the discrete fields.
func (s StoreConfig) PostgresDSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:   "/" + s.Name,
	}
	if s.Password != "" {
		u.User = url.UserPassword(s.User, s.Password)
	} else {
		u.User = url.User(s.User)
	}
	q := url.Values{}
	if s.SSL {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "require":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
