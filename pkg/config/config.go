package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"huddle/pkg/client"
	"huddle/pkg/db/postgres"
	"huddle/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	StoreDriver string

	MongoURI          string
	MongoDatabaseName string
	ConnTimeout       time.Duration

	PostgresDSN             string
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration

	LockTimeout time.Duration

	SweepInterval  time.Duration
	SweeperEnabled bool

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout     time.Duration
	IdempotencyTTL     time.Duration
	IdempotencyBackend string
	MaxRequestSize     int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first; variables already set win.
func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	cfg := FromEnv(serviceName)
	if envFileErr != nil {
		cfg.Log.Debug("No .env file loaded", "error", envFileErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from the process environment without validating it.
func FromEnv(serviceName string) *Config {
	return &Config{
		StoreDriver: strings.ToLower(getEnvStr(EnvStoreDriver, DefaultStoreDriver)),

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		ConnTimeout:       getEnvDuration(EnvConnTimeout, DefaultConnTimeout),

		PostgresDSN:             getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),
		PostgresMaxOpenConns:    getEnvNum(EnvPostgresMaxOpenConns, DefaultPostgresMaxOpenConns),
		PostgresMaxIdleConns:    getEnvNum(EnvPostgresMaxIdleConns, DefaultPostgresMaxIdleConns),
		PostgresConnMaxLifetime: getEnvDuration(EnvPostgresConnMaxLifetime, DefaultPostgresConnMaxLifetime),

		LockTimeout: getEnvDuration(EnvLockTimeout, DefaultLockTimeout),

		SweepInterval:  getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		SweeperEnabled: getEnvBool(EnvSweeperEnabled, DefaultSweeperEnabled),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaBrokers: getEnvList(EnvKafkaBrokers, DefaultKafkaBrokers),
		KafkaTopic:   getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:     getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:     getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		IdempotencyBackend: strings.ToLower(getEnvStr(EnvIdempotencyBackend, DefaultIdempotencyBackend)),
		MaxRequestSize:     getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.ConnTimeout)
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, postgres.Config{
		DSN:             cfg.PostgresDSN,
		MaxOpenConns:    cfg.PostgresMaxOpenConns,
		MaxIdleConns:    cfg.PostgresMaxIdleConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		ConnectTimeout:  cfg.ConnTimeout,
	})
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	case StorePostgres:
		if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresDSN) {
			errors = append(errors, fmt.Sprintf("PostgresDSN must start with 'postgres://' or 'postgresql://', got: %s", redactURI(cfg.PostgresDSN)))
		}
		if cfg.PostgresMaxOpenConns <= 0 {
			errors = append(errors, fmt.Sprintf("PostgresMaxOpenConns must be positive, got: %d", cfg.PostgresMaxOpenConns))
		}
		if cfg.PostgresMaxIdleConns < 0 || cfg.PostgresMaxIdleConns > cfg.PostgresMaxOpenConns {
			errors = append(errors, fmt.Sprintf("PostgresMaxIdleConns (%d) must be between 0 and PostgresMaxOpenConns (%d)", cfg.PostgresMaxIdleConns, cfg.PostgresMaxOpenConns))
		}
	case StoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of %s, %s, %s, got: %s", StorePostgres, StoreMongo, StoreMemory, cfg.StoreDriver))
	}

	switch cfg.IdempotencyBackend {
	case IdempotencyMemory:
	case IdempotencyRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when the redis idempotency backend is selected")
		}
	default:
		errors = append(errors, fmt.Sprintf("IdempotencyBackend must be %s or %s, got: %s", IdempotencyMemory, IdempotencyRedis, cfg.IdempotencyBackend))
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			errors = append(errors, "KafkaBrokers cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaTopic == "" {
			errors = append(errors, "KafkaTopic cannot be empty when Kafka is enabled")
		}
	}

	if cfg.ConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ConnTimeout must be positive, got: %s", cfg.ConnTimeout))
	}
	if cfg.LockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockTimeout must be positive, got: %s", cfg.LockTimeout))
	}
	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"postgres_max_open_conns", cfg.PostgresMaxOpenConns,
		"lock_timeout", cfg.LockTimeout,
		"sweep_interval", cfg.SweepInterval,
		"sweeper_enabled", cfg.SweeperEnabled,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_topic", cfg.KafkaTopic,
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"idempotency_backend", cfg.IdempotencyBackend,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

var credentialRegex = regexp.MustCompile(`(^[a-z+]+://)[^:/@]+:[^@]+@`)

func redactURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnvStr(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
