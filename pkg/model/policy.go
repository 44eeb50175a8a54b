package model

import (
	"time"

	"parkshare/pkg/credits"
)

const (
	DefaultOwnerCancelMargin        = 3 * time.Hour
	DefaultAvailabilityCancelMargin = 3 * time.Hour
	DefaultBorderMargin             = time.Minute
)

// Policy holds the tunable rules of the booking engine.
type Policy struct {
	// OwnerCancelMargin is the lead time under which an owner can no longer cancel a booking.
	OwnerCancelMargin time.Duration
	// AvailabilityCancelMargin is the lead time under which an availability holding
	// bookings can no longer be withdrawn.
	AvailabilityCancelMargin time.Duration
	// BorderMargin trims free windows on each side of a booking.
	BorderMargin time.Duration
	HourlyRate   credits.Credits
}

func DefaultPolicy() Policy {
	return Policy{
		OwnerCancelMargin:        DefaultOwnerCancelMargin,
		AvailabilityCancelMargin: DefaultAvailabilityCancelMargin,
		BorderMargin:             DefaultBorderMargin,
		HourlyRate:               credits.FromInt(1),
	}
}

func (p Policy) isZero() bool {
	return p.OwnerCancelMargin == 0 && p.AvailabilityCancelMargin == 0 && p.BorderMargin == 0 && p.HourlyRate.IsZero()
}

// Cost prices a window at the hourly rate.
func (p Policy) Cost(d time.Duration) credits.Credits {
	return credits.ForDuration(d, p.HourlyRate)
}
