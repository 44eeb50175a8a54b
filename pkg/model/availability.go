package model

import (
	"sort"
	"time"
)

// ParkingSpotAvailability is a window during which the owner lends the spot.
type ParkingSpotAvailability struct {
	ID   string    `json:"id" bson:"id"`
	From time.Time `json:"from" bson:"from"`
	To   time.Time `json:"to" bson:"to"`
}

func (a ParkingSpotAvailability) Range() TimeRange {
	return TimeRange{From: a.From, To: a.To}
}

// SplitNonOverlapping returns the free parts of the availability once the given
// bookings are carved out, each free part kept margin away from any booking.
// Windows come back ordered by start and never overlap. Bookings outside the
// availability are ignored.
func (a ParkingSpotAvailability) SplitNonOverlapping(bookings []ParkingSpotBooking, margin time.Duration) []TimeRange {
	window := a.Range()

	inside := make([]TimeRange, 0, len(bookings))
	for _, b := range bookings {
		if b.Range().Overlaps(window) {
			inside = append(inside, b.Range())
		}
	}
	if len(inside) == 0 {
		return []TimeRange{window}
	}

	sort.Slice(inside, func(i, j int) bool {
		return inside[i].From.Before(inside[j].From)
	})

	free := make([]TimeRange, 0, len(inside)+1)
	cursor := window.From
	for _, booked := range inside {
		end := booked.From.Add(-margin)
		if end.After(cursor) {
			free = append(free, TimeRange{From: cursor, To: end})
		}
		if next := booked.To.Add(margin); next.After(cursor) {
			cursor = next
		}
	}
	if cursor.Before(window.To) {
		free = append(free, TimeRange{From: cursor, To: window.To})
	}
	return free
}
