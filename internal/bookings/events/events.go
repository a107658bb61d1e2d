// Package events publishes booking lifecycle changes to Kafka, keyed by doctor so every consumer
// sees one doctor's changes in order.
package events

import (
	"context"
	"fmt"

	"docslot/pkg/kafka"
	"docslot/pkg/middleware"
	"docslot/pkg/model"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingStatusChanged = "booking.status_changed"

	SchemaVersion = "1"
)

type BookingEvent struct {
	Booking        *model.Booking      `json:"booking"`
	PreviousStatus model.BookingStatus `json:"previous_status,omitempty"`
}

type Publisher interface {
	BookingCreated(ctx context.Context, booking *model.Booking) error
	StatusChanged(ctx context.Context, booking *model.Booking, previous model.BookingStatus) error
}

type KafkaPublisher struct {
	producer kafka.Publisher
	source   string
}

func NewKafkaPublisher(producer kafka.Publisher, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) BookingCreated(ctx context.Context, booking *model.Booking) error {
	return p.publish(ctx, EventBookingCreated, BookingEvent{Booking: booking})
}

func (p *KafkaPublisher) StatusChanged(ctx context.Context, booking *model.Booking, previous model.BookingStatus) error {
	return p.publish(ctx, EventBookingStatusChanged, BookingEvent{Booking: booking, PreviousStatus: previous})
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, event BookingEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Booking.DoctorID).
		WithValue(event).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(event.Booking.UpdatedAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	return p.producer.Publish(ctx, msg)
}

// Decode extracts a booking event from a consumed message.
func Decode(msg kafka.Message) (string, *BookingEvent, error) {
	eventType := msg.GetEventType()
	switch eventType {
	case EventBookingCreated, EventBookingStatusChanged:
	default:
		return eventType, nil, kafka.NewPermanentError("unknown booking event type "+eventType, nil)
	}

	var event BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		return eventType, nil, kafka.NewPermanentError("decode booking event", err)
	}
	if event.Booking == nil || event.Booking.DoctorID == "" || event.Booking.Date == "" {
		return eventType, nil, kafka.NewPermanentError("booking event without doctor or date", nil)
	}
	return eventType, &event, nil
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) BookingCreated(context.Context, *model.Booking) error { return nil }

func (NoopPublisher) StatusChanged(context.Context, *model.Booking, model.BookingStatus) error {
	return nil
}
