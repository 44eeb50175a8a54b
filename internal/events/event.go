package events

import (
	"context"
	"time"

	"parkshare/pkg/model"
	"parkshare/pkg/rating"
)

type EventType string

const (
	BookingCompleted EventType = "booking.completed"
	BookingCancelled EventType = "booking.cancelled"
	BookingRated     EventType = "booking.rated"

	SchemaVersion = "1"
)

// BookingOutcomeEvent tells the ratings side how a booking ended for the spot
// owner. EventID is derived from the booking so redelivery and retried
// publishing collapse onto one rating change.
type BookingOutcomeEvent struct {
	EventID    string         `json:"event_id"`
	Type       EventType      `json:"type"`
	BookingID  string         `json:"booking_id"`
	SpotID     string         `json:"spot_id"`
	OwnerID    string         `json:"owner_id"`
	BookerID   string         `json:"booker_id"`
	Outcome    rating.Outcome `json:"outcome"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	PublishOutcome(ctx context.Context, event BookingOutcomeEvent) error
}

func Completed(spot *model.ParkingSpot, b model.ParkingSpotBooking, at time.Time) BookingOutcomeEvent {
	return newEvent("completed:", BookingCompleted, spot, b, rating.Good, at)
}

func Cancelled(spot *model.ParkingSpot, c model.CancelledBooking, at time.Time) BookingOutcomeEvent {
	return newEvent("cancelled:", BookingCancelled, spot, c.Booking, c.Outcome(), at)
}

func Rated(spot *model.ParkingSpot, b model.ParkingSpotBooking, outcome rating.Outcome, at time.Time) BookingOutcomeEvent {
	return newEvent("rated:", BookingRated, spot, b, outcome, at)
}

func newEvent(prefix string, typ EventType, spot *model.ParkingSpot, b model.ParkingSpotBooking, outcome rating.Outcome, at time.Time) BookingOutcomeEvent {
	return BookingOutcomeEvent{
		EventID:    prefix + b.ID,
		Type:       typ,
		BookingID:  b.ID,
		SpotID:     spot.ID,
		OwnerID:    spot.OwnerID,
		BookerID:   b.BookedByUserID,
		Outcome:    outcome,
		OccurredAt: at,
	}
}
