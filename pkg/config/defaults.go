package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "parkshare"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultOwnerCancelMargin        = 3 * time.Hour
	DefaultAvailabilityCancelMargin = 3 * time.Hour
	DefaultBorderMargin             = 1 * time.Minute
	DefaultCreditsPerHour           = "1"
	DefaultInitialCredits           = "10"

	EventsModeKafka  = "kafka"
	EventsModeInline = "inline"

	DefaultEventsMode = EventsModeKafka

	DefaultSchedulerInterval  = 1 * time.Minute
	DefaultSchedulerLeaseTTL  = 50 * time.Second
	DefaultSchedulerBatchSize = 100

	DefaultPaginationLimit = 100
)
