package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gocql/gocql"
	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverScylla = "scylla"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDB       string `env:"MONGO_DB" envDefault:"gueststay"`
	Scylla        Scylla `envPrefix:"SCYLLA_"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	KafkaBrokers       []string        `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicPrefix   string          `env:"KAFKA_TOPIC_PREFIX"`
	OutboxPollInterval time.Duration   `env:"OUTBOX_POLL_INTERVAL" envDefault:"500ms"`
	RetryBackoff       []time.Duration `env:"RETRY_BACKOFF" envDefault:"1s,5s,30s" envSeparator:","`

	IdempotencyTTL     time.Duration `env:"IDEMP_TTL" envDefault:"168h"`
	CommandMaxAttempts int           `env:"COMMAND_MAX_ATTEMPTS" envDefault:"5"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	CORSAllowOrigins   []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"*" envSeparator:","`

	S3 S3 `envPrefix:"S3_"`
}

type Scylla struct {
	Hosts             []string `env:"HOSTS" envDefault:"localhost" envSeparator:","`
	Keyspace          string   `env:"KEYSPACE" envDefault:"gueststay"`
	Username          string   `env:"USERNAME"`
	Password          string   `env:"PASSWORD"`
	ConsistencyName   string   `env:"CONSISTENCY" envDefault:"quorum"`
	Consistency       gocql.Consistency
	Timeout           time.Duration `env:"TIMEOUT" envDefault:"5s"`
	ReplicationFactor int           `env:"REPLICATION_FACTOR" envDefault:"1"`
}

// S3 configures folio storage. An empty Endpoint disables folio export.
type S3 struct {
	Endpoint  string        `env:"ENDPOINT"`
	AccessKey string        `env:"ACCESS_KEY"`
	SecretKey string        `env:"SECRET_KEY"`
	Bucket    string        `env:"BUCKET" envDefault:"guest-stay-folios"`
	UseSSL    bool          `env:"USE_SSL" envDefault:"false"`
	LinkTTL   time.Duration `env:"LINK_TTL" envDefault:"15m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the process environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	consistency, err := parseConsistency(cfg.Scylla.ConsistencyName)
	if err != nil {
		return Config{}, err
	}
	cfg.Scylla.Consistency = consistency
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo, DriverScylla:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %q", c.StorageDriver)
	}
	if c.StorageDriver == DriverScylla {
		if len(c.Scylla.Hosts) == 0 {
			return errors.New("SCYLLA_HOSTS is required")
		}
		if !validKeyspace(c.Scylla.Keyspace) {
			return fmt.Errorf("invalid SCYLLA_KEYSPACE: %q", c.Scylla.Keyspace)
		}
	}
	if c.CommandMaxAttempts < 1 {
		return errors.New("COMMAND_MAX_ATTEMPTS must be at least 1")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	return nil
}

// PublishingEnabled reports whether committed events are relayed to Kafka.
func (c Config) PublishingEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

func (c Config) FolioEnabled() bool {
	return c.S3.Endpoint != ""
}

func validKeyspace(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum":
		return gocql.LocalQuorum, nil
	case "local_one":
		return gocql.LocalOne, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}
