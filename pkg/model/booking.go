package model

import (
	"time"

	"parkshare/pkg/credits"
	"parkshare/pkg/rating"
)

type ParkingSpotBooking struct {
	ID             string          `json:"id" bson:"id"`
	BookedByUserID string          `json:"booked_by_user_id" bson:"booked_by_user_id"`
	From           time.Time       `json:"from" bson:"from"`
	To             time.Time       `json:"to" bson:"to"`
	Rating         *rating.Outcome `json:"rating,omitempty" bson:"rating,omitempty"`
	Completed      bool            `json:"completed" bson:"completed"`
	// MergedIDs lists bookings of the same user that were folded into this one.
	MergedIDs []string  `json:"merged_ids,omitempty" bson:"merged_ids,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (b ParkingSpotBooking) Range() TimeRange {
	return TimeRange{From: b.From, To: b.To}
}

// Subjects are the ledger subjects whose entries belong to this booking.
func (b ParkingSpotBooking) Subjects() []string {
	return append([]string{b.ID}, b.MergedIDs...)
}

type Canceller string

const (
	CancelledByOwner  Canceller = "owner"
	CancelledByBooker Canceller = "booker"
)

type CancelledBooking struct {
	Booking ParkingSpotBooking `json:"booking"`
	By      Canceller          `json:"cancelled_by"`
}

// Outcome is the reputation effect on the spot owner.
func (c CancelledBooking) Outcome() rating.Outcome {
	if c.By == CancelledByOwner {
		return rating.Bad
	}
	return rating.Neutral
}

type BookingResult struct {
	Booking ParkingSpotBooking `json:"booking"`
	// Cost covers only the newly requested duration, not the merged extent.
	Cost credits.Credits `json:"cost"`
	// Absorbed holds the ids of existing bookings merged into Booking.
	Absorbed []string `json:"absorbed,omitempty"`
}

type CancelledAvailability struct {
	Availability ParkingSpotAvailability `json:"availability"`
	Bookings     []ParkingSpotBooking    `json:"bookings"`
}
