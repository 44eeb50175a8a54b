package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvOwnerCancelMargin        = "OWNER_CANCEL_MARGIN"
	EnvAvailabilityCancelMargin = "AVAILABILITY_CANCEL_MARGIN"
	EnvBorderMargin             = "BORDER_MARGIN"
	EnvCreditsPerHour           = "CREDITS_PER_HOUR"
	EnvInitialCredits           = "INITIAL_CREDITS"

	EnvEventsMode = "EVENTS_MODE"

	EnvSchedulerInterval  = "SCHEDULER_INTERVAL"
	EnvSchedulerLeaseTTL  = "SCHEDULER_LEASE_TTL"
	EnvSchedulerBatchSize = "SCHEDULER_BATCH_SIZE"
)
