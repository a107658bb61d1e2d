package availability

import (
	"context"

	"docslot/internal/bookings/events"
	"docslot/pkg/kafka"
	"docslot/pkg/logger"
)

type Invalidator interface {
	Invalidate(ctx context.Context, doctorID, date string) error
}

// InvalidationHandler consumes booking events published by any scheduler instance and drops
// the matching cache entries. It keeps per-instance memory caches coherent; with the redis
// cache it is redundant but harmless.
func InvalidationHandler(cache Invalidator, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		eventType, event, err := events.Decode(msg)
		if err != nil {
			return err
		}

		b := event.Booking
		if err := cache.Invalidate(ctx, b.DoctorID, b.Date); err != nil {
			return kafka.NewTransientError("invalidate availability", err)
		}
		log.Debug("Availability invalidated",
			"event_type", eventType,
			"doctor_id", b.DoctorID,
			"date", b.Date,
			"event_id", msg.GetEventID(),
		)
		return nil
	}
}
