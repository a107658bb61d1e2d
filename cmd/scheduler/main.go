package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"docslot/internal/availability"
	"docslot/internal/bookings/events"
	bookingshandler "docslot/internal/bookings/handler"
	"docslot/internal/bookings/locker"
	bookingsrepository "docslot/internal/bookings/repository"
	bookingsservice "docslot/internal/bookings/service"
	bookingsvalidator "docslot/internal/bookings/validator"
	doctorshandler "docslot/internal/doctors/handler"
	doctorsrepository "docslot/internal/doctors/repository"
	doctorsservice "docslot/internal/doctors/service"
	doctorsvalidator "docslot/internal/doctors/validator"
	"docslot/internal/health"
	"docslot/internal/scheduling/policy"
	"docslot/pkg/app"
	"docslot/pkg/config"
	"docslot/pkg/kafka"
	kafkamiddleware "docslot/pkg/kafka/middleware"
	"docslot/pkg/metrics"
)

const ServiceName = "scheduler"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Connect()

	cfg.Log.Info("Starting Scheduler service", "storage_driver", cfg.StorageDriver)

	serverApp := app.NewApplication(cfg)

	var (
		gatherer prometheus.Gatherer
		m        *metrics.SchedulerMetrics
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.NewSchedulerMetrics(reg)
		gatherer = reg
	}

	doctorRepo, bookingRepo := initRepositories(cfg)
	pol := policy.FromConfig(cfg)
	cache := initCache(cfg)

	doctorService := doctorsservice.NewDoctorService(doctorRepo, doctorsvalidator.NewDoctorValidator(cfg.Log), cfg)
	projector := availability.NewProjector(doctorService, bookingRepo, pol, cfg,
		availability.WithCache(cache),
		availability.WithMetrics(m),
	)

	opts := []bookingsservice.Option{
		bookingsservice.WithInvalidator(projector),
		bookingsservice.WithMetrics(m),
	}
	if cfg.KafkaEnabled {
		opts = append(opts, bookingsservice.WithPublisher(initEvents(cfg, serverApp, cache, m)))
	}

	bookingService := bookingsservice.NewBookingService(
		bookingRepo,
		doctorService,
		initLocker(cfg),
		bookingsvalidator.NewBookingValidator(cfg.Log),
		pol,
		cfg,
		opts...,
	)

	serverApp.SetApp(healthChecks(cfg), gatherer,
		doctorshandler.NewDoctorHandler(doctorService, cfg.Log),
		bookingshandler.NewBookingHandler(bookingService, cfg.Log),
		availability.NewHandler(projector, cfg.Log),
	)
	serverApp.Run()
}

func initRepositories(cfg *config.Config) (doctorsrepository.DoctorRepository, bookingsrepository.BookingRepository) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		cfg.Log.Info("Repositories initialized", "driver", cfg.StorageDriver, "database", cfg.MongoDatabaseName)
		return doctorsrepository.NewMongoDoctorRepository(cfg), bookingsrepository.NewMongoBookingRepository(cfg)
	case config.DriverPostgres:
		cfg.Log.Info("Repositories initialized", "driver", cfg.StorageDriver)
		return doctorsrepository.NewPostgresDoctorRepository(cfg.Client.Postgres),
			bookingsrepository.NewPostgresBookingRepository(cfg.Client.Postgres)
	default:
		cfg.Log.Warn("Using in-memory repositories; data is lost on restart")
		return doctorsrepository.NewMemoryDoctorRepository(), bookingsrepository.NewMemoryBookingRepository()
	}
}

func initLocker(cfg *config.Config) locker.Locker {
	opts := locker.Options{
		AcquireTimeout: cfg.LockAcquireTimeout,
		TTL:            cfg.LockTTL,
		RetryInterval:  cfg.LockRetryInterval,
	}
	switch cfg.LockBackend {
	case config.DriverMongo:
		return locker.NewMongoLocker(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), opts)
	case config.DriverRedis:
		return locker.NewRedisLocker(cfg.Client.Redis, opts)
	default:
		if cfg.StorageDriver != config.DriverMemory {
			cfg.Log.Warn("In-process lock backend only serializes bookings within this instance")
		}
		return locker.NewMemoryLocker(cfg.LockAcquireTimeout)
	}
}

func initCache(cfg *config.Config) availability.Cache {
	switch cfg.CacheBackend {
	case config.DriverRedis:
		return availability.NewRedisCache(cfg.Client.Redis, cfg.AvailabilityCacheTTL)
	case config.DriverMemory:
		return availability.NewMemoryCache(cfg.AvailabilityCacheTTL)
	default:
		return availability.NoopCache{}
	}
}

// initEvents wires the booking event producer and the consumer that keeps this instance's
// availability cache in step with bookings made elsewhere.
func initEvents(cfg *config.Config, serverApp *app.Application, cache availability.Cache, m *metrics.SchedulerMetrics) events.Publisher {
	kcfg := cfg.Kafka

	producer, err := kafka.NewProducer(kcfg, kcfg.BookingEventsTopic, kcfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafkamiddleware.MetricsProducerMiddleware(m))

	consumerLog := cfg.Log.With("component", "availability-invalidation")
	consumer, err := kafka.NewConsumer(kcfg, kcfg.BookingEventsTopic, kcfg.ConsumerGroup, kcfg.BookingEventsDLQTopic,
		availability.InvalidationHandler(cache, consumerLog), consumerLog)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(consumerLog))
	consumer.Use(kafkamiddleware.MetricsConsumerMiddleware(m))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Availability invalidation consumer stopped", "error", err)
		}
	}()

	serverApp.OnShutdown(func(context.Context) {
		cancel()
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})

	cfg.Log.Info("Booking events enabled", "topic", kcfg.BookingEventsTopic, "group", kcfg.ConsumerGroup)
	return events.NewKafkaPublisher(producer, ServiceName)
}

func healthChecks(cfg *config.Config) map[string]health.Check {
	checks := map[string]health.Check{}
	if c := cfg.Client.Mongo; c != nil {
		checks["mongo"] = func(ctx context.Context) error { return c.Ping(ctx, nil) }
	}
	if db := cfg.Client.Postgres; db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb := cfg.Client.Redis; rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
