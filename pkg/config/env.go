package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvStorageDriver = "STORAGE_DRIVER"
	EnvPostgresDSN   = "POSTGRES_DSN"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvAPISigningSecret = "API_SIGNING_SECRET"
	EnvMetricsEnabled   = "METRICS_ENABLED"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLockBackend        = "LOCK_BACKEND"
	EnvLockAcquireTimeout = "LOCK_ACQUIRE_TIMEOUT"
	EnvLockTTL            = "LOCK_TTL"
	EnvLockRetryInterval  = "LOCK_RETRY_INTERVAL"

	EnvCacheBackend             = "CACHE_BACKEND"
	EnvRedisAddr                = "REDIS_ADDR"
	EnvRedisPassword            = "REDIS_PASSWORD"
	EnvRedisDB                  = "REDIS_DB"
	EnvAvailabilityCacheTTL     = "AVAILABILITY_CACHE_TTL"
	EnvAvailabilityMaxRangeDays = "AVAILABILITY_MAX_RANGE_DAYS"

	EnvDefaultSlotGranularityMin = "DEFAULT_SLOT_GRANULARITY_MIN"
	EnvDefaultTimeZone           = "DEFAULT_TIME_ZONE"
	EnvConsultationDuration      = "CONSULTATION_DURATION"
	EnvVoiceDuration             = "VOICE_DURATION"
	EnvVisitDuration             = "VISIT_DURATION"
	EnvVoicePricePercent         = "VOICE_PRICE_PERCENT"
	EnvChatPricePercent          = "CHAT_PRICE_PERCENT"
	EnvVisitSurcharge            = "VISIT_SURCHARGE"

	EnvKafkaEnabled = "KAFKA_ENABLED"
)
