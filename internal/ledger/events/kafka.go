package events

import (
	"context"
	"stayledger/pkg/kafka"
	"stayledger/pkg/logger"
	"stayledger/pkg/model"
	"time"
)

const schemaVersion = "1"

// KafkaPublisher writes ledger events to the event topic keyed by booking
// (or listing, for listing events) so per-entity ordering survives
// partitioning.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.LedgerEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	key := event.BookingID
	if key == "" {
		key = event.ListingID
	}

	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(event).
		WithEventType(event.Type).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish ledger event",
			"event_type", event.Type,
			"booking_id", event.BookingID,
			"listing_id", event.ListingID,
			"error", err,
		)
		return err
	}

	p.log.Debug("Ledger event published",
		"event_type", event.Type,
		"booking_id", event.BookingID,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
