package events

import (
	"context"

	"parkshare/pkg/rating"
)

type OutcomeApplier interface {
	Apply(ctx context.Context, eventID, ownerID string, outcome rating.Outcome) error
}

// InlinePublisher hands outcomes straight to the ratings service in process.
// Used for single-binary deployments without a broker.
type InlinePublisher struct {
	applier OutcomeApplier
}

func NewInlinePublisher(applier OutcomeApplier) *InlinePublisher {
	return &InlinePublisher{applier: applier}
}

func (p *InlinePublisher) PublishOutcome(ctx context.Context, event BookingOutcomeEvent) error {
	return p.applier.Apply(ctx, event.EventID, event.OwnerID, event.Outcome)
}
