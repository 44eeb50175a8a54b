package handler

import (
	"context"

	"parkshare/internal/events"
	"parkshare/internal/ratings/service"
	"parkshare/pkg/kafka"
)

// NewOutcomeMessageHandler feeds booking outcome events from kafka into the
// rating service. Malformed events fail permanently and end up on the DLQ.
func NewOutcomeMessageHandler(svc service.RatingService) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := events.DecodeOutcomeMessage(msg)
		if err != nil {
			return err
		}
		return svc.Apply(ctx, event.EventID, event.OwnerID, event.Outcome)
	}
}
