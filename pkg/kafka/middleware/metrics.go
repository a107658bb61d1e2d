package kafka_middleware

import (
	"context"
	"time"

	"docslot/pkg/kafka"
	"docslot/pkg/metrics"
)

func MetricsProducerMiddleware(m *metrics.SchedulerMetrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ObserveKafka("publish", err, time.Since(start))
		return err
	}
}

func MetricsConsumerMiddleware(m *metrics.SchedulerMetrics) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.ObserveKafka("consume", err, time.Since(start))
		return err
	}
}
