package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Store    StoreConfig
	Redis    RedisConfig
	SQLite   SQLiteConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Catalog  CatalogConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
	Log      LogConfig
}

type AppConfig struct {
	Name string
	// InstanceID tags published events; empty means a random id per process.
	InstanceID string
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
	SecureCookies   bool
}

// StoreConfig selects where carts and wishlists are persisted.
type StoreConfig struct {
	Backend      string
	KeyPrefix    string
	TTL          time.Duration // 0 = keep forever (redis and mongo only)
	CacheIdleTTL time.Duration // how long an untouched cart stays in memory
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SQLiteConfig struct {
	Path string
}

type MongoConfig struct {
	URI      string
	Database string
}

type PostgresConfig struct {
	DSN string
}

type CatalogConfig struct {
	Path string
}

// KafkaConfig enables checkout events when Brokers is set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type CheckoutConfig struct {
	Currency           string
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	// BillsDSN is a postgres DSN for bills; empty keeps bills in memory.
	BillsDSN string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with PBU_ prefix (e.g., PBU_STORE_BACKEND)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file, defaults and env vars only
	}

	v.SetEnvPrefix("PBU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:       v.GetString("app.name"),
			InstanceID: v.GetString("app.instance_id"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			RequestTimeout:  v.GetDuration("http.request_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			SecureCookies:   v.GetBool("http.secure_cookies"),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(v.GetString("store.backend")),
			KeyPrefix:    v.GetString("store.key_prefix"),
			TTL:          v.GetDuration("store.ttl"),
			CacheIdleTTL: v.GetDuration("store.cache_idle_ttl"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		SQLite: SQLiteConfig{
			Path: v.GetString("sqlite.path"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Postgres: PostgresConfig{
			DSN: v.GetString("postgres.dsn"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("catalog.path"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
			GroupID: v.GetString("kafka.group_id"),
		},
		Checkout: CheckoutConfig{
			Currency:           strings.ToUpper(v.GetString("checkout.currency")),
			BreakerMaxFailures: v.GetUint32("checkout.breaker_max_failures"),
			BreakerOpenTimeout: v.GetDuration("checkout.breaker_open_timeout"),
			BillsDSN:           v.GetString("checkout.bills_dsn"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pleasebuyus-cart")
	v.SetDefault("app.instance_id", "")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_size", 1<<20) // 1MB
	v.SetDefault("http.secure_cookies", false)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.key_prefix", "pbu:")
	v.SetDefault("store.ttl", 0)
	v.SetDefault("store.cache_idle_ttl", 30*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("sqlite.path", "cart.db")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cartdb")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("catalog.path", "catalog.db")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "cart-checkout")
	v.SetDefault("kafka.group_id", "cart-service-consumer")

	v.SetDefault("checkout.currency", "USD")
	v.SetDefault("checkout.breaker_max_failures", 5)
	v.SetDefault("checkout.breaker_open_timeout", 30*time.Second)
	v.SetDefault("checkout.bills_dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.HTTP.Port == "" {
		fail("http.port is required")
	}
	if c.HTTP.MaxBodySize <= 0 {
		fail("http.max_body_size must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			fail("redis.addr is required for the redis store")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			fail("sqlite.path is required for the sqlite store")
		}
	case BackendMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			fail("mongo.uri and mongo.database are required for the mongo store")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			fail("postgres.dsn is required for the postgres store")
		}
	default:
		fail("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		fail("store.ttl must not be negative")
	}
	if c.Store.CacheIdleTTL <= c.HTTP.RequestTimeout {
		fail("store.cache_idle_ttl must be longer than http.request_timeout")
	}

	if c.Catalog.Path == "" {
		fail("catalog.path is required")
	}

	if c.Kafka.Enabled() && (c.Kafka.Topic == "" || c.Kafka.GroupID == "") {
		fail("kafka.topic and kafka.group_id are required when brokers are set")
	}

	if len(c.Checkout.Currency) != 3 {
		fail("checkout.currency must be a 3-letter code, got %q", c.Checkout.Currency)
	}

	return errors.Join(errs...)
}

// splitList accepts both a TOML array and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
