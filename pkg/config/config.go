package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docslot/pkg/client"
	kafka_config "docslot/pkg/kafka/config"
	"docslot/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	StorageDriver string
	PostgresDSN   string

	Port string

	APISigningSecret string
	MetricsEnabled   bool

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LockBackend        string
	LockAcquireTimeout time.Duration
	LockTTL            time.Duration
	LockRetryInterval  time.Duration

	CacheBackend             string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	AvailabilityCacheTTL     time.Duration
	AvailabilityMaxRangeDays int

	DefaultSlotGranularityMin int
	DefaultTimeZone           string
	ConsultationDuration      time.Duration
	VoiceDuration             time.Duration
	VisitDuration             time.Duration
	VoicePricePercent         int
	ChatPricePercent          int
	VisitSurcharge            int64

	KafkaEnabled bool
	Kafka        *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the process environment. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		StorageDriver: strings.ToLower(getEnvStr(EnvStorageDriver, DefaultStorageDriver)),
		PostgresDSN:   getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),

		Port: getEnvStr(EnvPort, DefaultPort),

		APISigningSecret: getEnvStr(EnvAPISigningSecret, ""),
		MetricsEnabled:   getEnvBool(EnvMetricsEnabled, true),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LockBackend:        strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockAcquireTimeout: getEnvDuration(EnvLockAcquireTimeout, DefaultLockAcquireTimeout),
		LockTTL:            getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockRetryInterval:  getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),

		CacheBackend:             strings.ToLower(getEnvStr(EnvCacheBackend, DefaultCacheBackend)),
		RedisAddr:                getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:            getEnvStr(EnvRedisPassword, ""),
		RedisDB:                  getEnvNum(EnvRedisDB, DefaultRedisDB),
		AvailabilityCacheTTL:     getEnvDuration(EnvAvailabilityCacheTTL, DefaultAvailabilityCacheTTL),
		AvailabilityMaxRangeDays: getEnvNum(EnvAvailabilityMaxRangeDays, DefaultAvailabilityMaxRangeDays),

		DefaultSlotGranularityMin: getEnvNum(EnvDefaultSlotGranularityMin, DefaultSlotGranularityMin),
		DefaultTimeZone:           getEnvStr(EnvDefaultTimeZone, DefaultTimeZone),
		ConsultationDuration:      getEnvDuration(EnvConsultationDuration, DefaultConsultationDuration),
		VoiceDuration:             getEnvDuration(EnvVoiceDuration, DefaultVoiceDuration),
		VisitDuration:             getEnvDuration(EnvVisitDuration, DefaultVisitDuration),
		VoicePricePercent:         getEnvNum(EnvVoicePricePercent, DefaultVoicePricePercent),
		ChatPricePercent:          getEnvNum(EnvChatPricePercent, DefaultChatPricePercent),
		VisitSurcharge:            int64(getEnvNum(EnvVisitSurcharge, DefaultVisitSurcharge)),

		KafkaEnabled: getEnvBool(EnvKafkaEnabled, false),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, logger.INFO),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if cfg.KafkaEnabled {
		kcfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		cfg.Kafka = kcfg
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// Connect opens every backend the configuration selects.
func (cfg *Config) Connect() {
	if cfg.StorageDriver == DriverMongo || cfg.LockBackend == DriverMongo {
		cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
	}
	if cfg.StorageDriver == DriverPostgres {
		cfg.Client.SetPostgres(cfg.Log, cfg.PostgresDSN, cfg.MongoConnTimeout)
	}
	if cfg.CacheBackend == DriverRedis || cfg.LockBackend == DriverRedis {
		cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
}

// Location resolves DefaultTimeZone. Validate guarantees it loads.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if !slices.Contains([]string{DriverMongo, DriverPostgres, DriverMemory}, cfg.StorageDriver) {
		errors = append(errors, fmt.Sprintf("StorageDriver must be one of [mongo, postgres, memory], got: %s", cfg.StorageDriver))
	}
	if !slices.Contains([]string{DriverMemory, DriverMongo, DriverRedis}, cfg.LockBackend) {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [memory, mongo, redis], got: %s", cfg.LockBackend))
	}
	if !slices.Contains([]string{DriverNone, DriverMemory, DriverRedis}, cfg.CacheBackend) {
		errors = append(errors, fmt.Sprintf("CacheBackend must be one of [none, memory, redis], got: %s", cfg.CacheBackend))
	}

	if cfg.StorageDriver == DriverMongo || cfg.LockBackend == DriverMongo {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
	}
	if cfg.StorageDriver == DriverPostgres && !strings.HasPrefix(cfg.PostgresDSN, "postgres") {
		errors = append(errors, "PostgresDSN must be a postgres:// URL when StorageDriver is postgres")
	}
	if (cfg.CacheBackend == DriverRedis || cfg.LockBackend == DriverRedis) && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when redis is selected")
	}

	positive := map[string]time.Duration{
		"MongoConnTimeout":     cfg.MongoConnTimeout,
		"RateLimitWindow":      cfg.RateLimitWindow,
		"RequestTimeout":       cfg.RequestTimeout,
		"IdempotencyTTL":       cfg.IdempotencyTTL,
		"ReadTimeout":          cfg.ReadTimeout,
		"WriteTimeout":         cfg.WriteTimeout,
		"IdleTimeout":          cfg.IdleTimeout,
		"ShutdownTimeout":      cfg.ShutdownTimeout,
		"LockAcquireTimeout":   cfg.LockAcquireTimeout,
		"LockTTL":              cfg.LockTTL,
		"LockRetryInterval":    cfg.LockRetryInterval,
		"AvailabilityCacheTTL": cfg.AvailabilityCacheTTL,
		"ConsultationDuration": cfg.ConsultationDuration,
		"VoiceDuration":        cfg.VoiceDuration,
		"VisitDuration":        cfg.VisitDuration,
	}
	names := make([]string, 0, len(positive))
	for name := range positive {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if positive[name] <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", name, positive[name]))
		}
	}

	if cfg.LockTTL > 0 && cfg.LockTTL <= cfg.LockAcquireTimeout {
		errors = append(errors, fmt.Sprintf("LockTTL (%s) must exceed LockAcquireTimeout (%s)", cfg.LockTTL, cfg.LockAcquireTimeout))
	}
	for name, d := range map[string]time.Duration{"ConsultationDuration": cfg.ConsultationDuration, "VoiceDuration": cfg.VoiceDuration, "VisitDuration": cfg.VisitDuration} {
		if d%time.Minute != 0 {
			errors = append(errors, fmt.Sprintf("%s must be a whole number of minutes, got: %s", name, d))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.AvailabilityMaxRangeDays <= 0 {
		errors = append(errors, fmt.Sprintf("AvailabilityMaxRangeDays must be positive, got: %d", cfg.AvailabilityMaxRangeDays))
	}
	if cfg.DefaultSlotGranularityMin <= 0 || cfg.DefaultSlotGranularityMin > 24*60 {
		errors = append(errors, fmt.Sprintf("DefaultSlotGranularityMin must be between 1 and 1440, got: %d", cfg.DefaultSlotGranularityMin))
	}
	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimeZone must be an IANA zone, got: %s", cfg.DefaultTimeZone))
	}
	if cfg.VoicePricePercent < 0 || cfg.VoicePricePercent > 100 {
		errors = append(errors, fmt.Sprintf("VoicePricePercent must be between 0 and 100, got: %d", cfg.VoicePricePercent))
	}
	if cfg.ChatPricePercent < 0 || cfg.ChatPricePercent > 100 {
		errors = append(errors, fmt.Sprintf("ChatPricePercent must be between 0 and 100, got: %d", cfg.ChatPricePercent))
	}
	if cfg.VisitSurcharge < 0 {
		errors = append(errors, fmt.Sprintf("VisitSurcharge cannot be negative, got: %d", cfg.VisitSurcharge))
	}
	if cfg.KafkaEnabled && cfg.Kafka == nil {
		errors = append(errors, "Kafka configuration missing while KafkaEnabled is set")
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
		"storage_driver", cfg.StorageDriver,
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"postgres_dsn", redactURI(cfg.PostgresDSN),
		"port", cfg.Port,
		"api_signing_secret_set", cfg.APISigningSecret != "",
		"metrics_enabled", cfg.MetricsEnabled,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"lock_backend", cfg.LockBackend,
		"lock_acquire_timeout", cfg.LockAcquireTimeout,
		"lock_ttl", cfg.LockTTL,
		"cache_backend", cfg.CacheBackend,
		"redis_addr", cfg.RedisAddr,
		"availability_cache_ttl", cfg.AvailabilityCacheTTL,
		"availability_max_range_days", cfg.AvailabilityMaxRangeDays,
		"default_slot_granularity_min", cfg.DefaultSlotGranularityMin,
		"default_time_zone", cfg.DefaultTimeZone,
		"consultation_duration", cfg.ConsultationDuration,
		"voice_duration", cfg.VoiceDuration,
		"visit_duration", cfg.VisitDuration,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(^[a-z+]+://)[^:/@]+:[^@]+@`)
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

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
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
