package events

import (
	"context"
	"fmt"

	"parkshare/pkg/kafka"
)

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer messagePublisher
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) PublishOutcome(ctx context.Context, event BookingOutcomeEvent) error {
	msg, err := NewOutcomeMessage(event, p.source)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventID, err)
	}
	return nil
}

// NewOutcomeMessage keys and correlates the message by booking so every
// outcome of one booking lands on the same partition in order.
func NewOutcomeMessage(event BookingOutcomeEvent, source string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID(event.EventID).
		WithCorrelationID(event.BookingID).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
}

func DecodeOutcomeMessage(msg kafka.Message) (BookingOutcomeEvent, error) {
	var event BookingOutcomeEvent
	if err := msg.DecodeValue(&event); err != nil {
		return BookingOutcomeEvent{}, err
	}
	if event.EventID == "" || event.OwnerID == "" || !event.Outcome.Valid() {
		return BookingOutcomeEvent{}, kafka.NewPermanentError(fmt.Sprintf("invalid outcome event %q", event.EventID), kafka.ErrInvalidMessage)
	}
	return event, nil
}
