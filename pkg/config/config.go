package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"parkshare/pkg/client"
	"parkshare/pkg/credits"
	"parkshare/pkg/logger"
	"parkshare/pkg/model"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	OwnerCancelMargin        time.Duration
	AvailabilityCancelMargin time.Duration
	BorderMargin             time.Duration
	CreditsPerHour           string
	InitialCredits           string

	EventsMode string

	SchedulerInterval  time.Duration
	SchedulerLeaseTTL  time.Duration
	SchedulerBatchSize int

	// Clock is the only source of the current instant for services. Nil means time.Now.
	Clock func() time.Time

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// a missing .env file is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		OwnerCancelMargin:        getEnvDuration(EnvOwnerCancelMargin, DefaultOwnerCancelMargin),
		AvailabilityCancelMargin: getEnvDuration(EnvAvailabilityCancelMargin, DefaultAvailabilityCancelMargin),
		BorderMargin:             getEnvDuration(EnvBorderMargin, DefaultBorderMargin),
		CreditsPerHour:           getEnvStr(EnvCreditsPerHour, DefaultCreditsPerHour),
		InitialCredits:           getEnvStr(EnvInitialCredits, DefaultInitialCredits),

		EventsMode: getEnvStr(EnvEventsMode, DefaultEventsMode),

		SchedulerInterval:  getEnvDuration(EnvSchedulerInterval, DefaultSchedulerInterval),
		SchedulerLeaseTTL:  getEnvDuration(EnvSchedulerLeaseTTL, DefaultSchedulerLeaseTTL),
		SchedulerBatchSize: getEnvNum(EnvSchedulerBatchSize, DefaultSchedulerBatchSize),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

// Now returns the current instant in UTC.
func (cfg *Config) Now() time.Time {
	if cfg.Clock != nil {
		return cfg.Clock().UTC()
	}
	return time.Now().UTC()
}

// Policy builds the booking engine rules. Values were checked by Validate.
func (cfg *Config) Policy() model.Policy {
	rate, err := credits.Parse(cfg.CreditsPerHour)
	if err != nil {
		rate = credits.FromInt(1)
	}
	return model.Policy{
		OwnerCancelMargin:        cfg.OwnerCancelMargin,
		AvailabilityCancelMargin: cfg.AvailabilityCancelMargin,
		BorderMargin:             cfg.BorderMargin,
		HourlyRate:               rate,
	}
}

func (cfg *Config) StartingCredits() credits.Credits {
	c, err := credits.Parse(cfg.InitialCredits)
	if err != nil {
		return credits.Zero
	}
	return c
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"SchedulerInterval", cfg.SchedulerInterval},
		{"SchedulerLeaseTTL", cfg.SchedulerLeaseTTL},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.OwnerCancelMargin < 0 {
		errors = append(errors, fmt.Sprintf("OwnerCancelMargin cannot be negative, got: %s", cfg.OwnerCancelMargin))
	}
	if cfg.AvailabilityCancelMargin < 0 {
		errors = append(errors, fmt.Sprintf("AvailabilityCancelMargin cannot be negative, got: %s", cfg.AvailabilityCancelMargin))
	}
	if cfg.BorderMargin < 0 {
		errors = append(errors, fmt.Sprintf("BorderMargin cannot be negative, got: %s", cfg.BorderMargin))
	}
	if rate, err := credits.Parse(cfg.CreditsPerHour); err != nil || !rate.IsPositive() {
		errors = append(errors, fmt.Sprintf("CreditsPerHour must be a positive decimal, got: %s", cfg.CreditsPerHour))
	}
	if initial, err := credits.Parse(cfg.InitialCredits); err != nil || initial.IsNegative() {
		errors = append(errors, fmt.Sprintf("InitialCredits must be a non-negative decimal, got: %s", cfg.InitialCredits))
	}

	if cfg.EventsMode != EventsModeKafka && cfg.EventsMode != EventsModeInline {
		errors = append(errors, fmt.Sprintf("EventsMode must be one of [%s, %s], got: %s", EventsModeKafka, EventsModeInline, cfg.EventsMode))
	}
	if cfg.SchedulerLeaseTTL > cfg.SchedulerInterval {
		errors = append(errors, fmt.Sprintf("SchedulerLeaseTTL (%s) must not exceed SchedulerInterval (%s)", cfg.SchedulerLeaseTTL, cfg.SchedulerInterval))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.SchedulerBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("SchedulerBatchSize must be positive, got: %d", cfg.SchedulerBatchSize))
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
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"redis_db", cfg.RedisDB,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"owner_cancel_margin", cfg.OwnerCancelMargin,
		"availability_cancel_margin", cfg.AvailabilityCancelMargin,
		"border_margin", cfg.BorderMargin,
		"credits_per_hour", cfg.CreditsPerHour,
		"initial_credits", cfg.InitialCredits,
		"events_mode", cfg.EventsMode,
		"scheduler_interval", cfg.SchedulerInterval,
		"scheduler_lease_ttl", cfg.SchedulerLeaseTTL,
		"scheduler_batch_size", cfg.SchedulerBatchSize,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
