package config

const (
	EnvStoreDriver = "STORE_DRIVER"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvConnTimeout       = "CONN_TIMEOUT"

	EnvPostgresDSN             = "POSTGRES_DSN"
	EnvPostgresMaxOpenConns    = "POSTGRES_MAX_OPEN_CONNS"
	EnvPostgresMaxIdleConns    = "POSTGRES_MAX_IDLE_CONNS"
	EnvPostgresConnMaxLifetime = "POSTGRES_CONN_MAX_LIFETIME"

	EnvLockTimeout = "LOCK_TIMEOUT"

	EnvSweepInterval  = "SWEEP_INTERVAL"
	EnvSweeperEnabled = "SWEEPER_ENABLED"

	EnvKafkaEnabled = "KAFKA_ENABLED"
	EnvKafkaBrokers = "KAFKA_BROKERS"
	EnvKafkaTopic   = "KAFKA_TOPIC"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout     = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL     = "IDEMPOTENCY_TTL"
	EnvIdempotencyBackend = "IDEMPOTENCY_BACKEND"
	EnvMaxRequestSize     = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
