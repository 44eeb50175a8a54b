package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/rating"
	"parkshare/pkg/sanitizer"
)

// ParkingSpot owns its availability windows and the bookings made inside them.
// Every mutating method either applies fully or returns an error and leaves the
// spot untouched.
type ParkingSpot struct {
	ID             string                    `json:"id" bson:"_id"`
	OwnerID        string                    `json:"owner_id" bson:"owner_id"`
	ParkingID      string                    `json:"parking_id" bson:"parking_id"`
	SpotName       string                    `json:"spot_name" bson:"spot_name"`
	Disabled       bool                      `json:"disabled" bson:"disabled"`
	Availabilities []ParkingSpotAvailability `json:"availabilities" bson:"availabilities"`
	Bookings       []ParkingSpotBooking      `json:"bookings" bson:"bookings"`
	Version        int64                     `json:"version" bson:"version"`
	CreatedAt      time.Time                 `json:"created_at" bson:"created_at"`

	policy Policy
}

func NewParkingSpot(now time.Time, ownerID, parkingID, spotName string) (*ParkingSpot, error) {
	ownerID = sanitizer.NormalizeUserID(ownerID)
	spotName = sanitizer.NormalizeDisplayName(spotName)
	if err := checkVar("owner id", ownerID, "required"); err != nil {
		return nil, err
	}
	if err := checkVar("parking id", parkingID, "required"); err != nil {
		return nil, err
	}
	if err := checkVar("spot name", spotName, "required,notblank,max=50"); err != nil {
		return nil, err
	}
	return &ParkingSpot{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		ParkingID:      parkingID,
		SpotName:       spotName,
		Availabilities: []ParkingSpotAvailability{},
		Bookings:       []ParkingSpotBooking{},
		CreatedAt:      now,
	}, nil
}

func (s *ParkingSpot) SetPolicy(p Policy) {
	s.policy = p
}

func (s *ParkingSpot) Policy() Policy {
	if s.policy.isZero() {
		return DefaultPolicy()
	}
	return s.policy
}

func (s *ParkingSpot) EnsureOwner(userID string) error {
	if userID != s.OwnerID {
		return apperrors.Business(apperrors.CodeSpotInvalidEditing, "only the spot owner can change this spot")
	}
	return nil
}

func (s *ParkingSpot) Rename(userID, spotName string) error {
	if err := s.EnsureOwner(userID); err != nil {
		return err
	}
	spotName = sanitizer.NormalizeDisplayName(spotName)
	if err := checkVar("spot name", spotName, "required,notblank,max=50"); err != nil {
		return err
	}
	s.SpotName = spotName
	return nil
}

// Disable blocks new availabilities and bookings. Existing bookings are kept.
func (s *ParkingSpot) Disable(userID string) error {
	if err := s.EnsureOwner(userID); err != nil {
		return err
	}
	s.Disabled = true
	return nil
}

func (s *ParkingSpot) Enable(userID string) error {
	if err := s.EnsureOwner(userID); err != nil {
		return err
	}
	s.Disabled = false
	return nil
}

func (s *ParkingSpot) CanDelete(userID string) error {
	if userID != s.OwnerID {
		return apperrors.Business(apperrors.CodeSpotInvalidDeletion, "only the spot owner can delete this spot")
	}
	return nil
}

// MakeAvailable adds a lending window, merging it with every window it overlaps
// or touches. Returns the resulting window.
func (s *ParkingSpot) MakeAvailable(from, to time.Time) (ParkingSpotAvailability, error) {
	if s.Disabled {
		return ParkingSpotAvailability{}, apperrors.Business(apperrors.CodeSpotDisabled, "spot is disabled")
	}
	window, err := NewTimeRange(from, to)
	if err != nil {
		return ParkingSpotAvailability{}, err
	}

	merged := window
	absorbed := make(map[int]bool)
	for changed := true; changed; {
		changed = false
		for i, a := range s.Availabilities {
			if absorbed[i] || !a.Range().Touches(merged) {
				continue
			}
			merged = merged.Union(a.Range())
			absorbed[i] = true
			changed = true
		}
	}

	result := ParkingSpotAvailability{ID: uuid.NewString(), From: merged.From, To: merged.To}
	kept := make([]ParkingSpotAvailability, 0, len(s.Availabilities)+1)
	earliest := -1
	for i, a := range s.Availabilities {
		if !absorbed[i] {
			kept = append(kept, a)
			continue
		}
		if earliest == -1 || a.From.Before(s.Availabilities[earliest].From) {
			earliest = i
		}
	}
	// the merged window keeps the identity of the oldest window it swallowed
	if earliest != -1 {
		result.ID = s.Availabilities[earliest].ID
	}

	s.Availabilities = append(kept, result)
	sort.Slice(s.Availabilities, func(i, j int) bool {
		return s.Availabilities[i].From.Before(s.Availabilities[j].From)
	})
	return result, nil
}

// Book reserves [from, from+duration) for userID. A booking by the same user that
// overlaps or touches the new interval is extended instead of duplicated. The cost
// always prices the requested duration, even when part or all of it was already
// booked by the same user, and is left to the caller to charge.
func (s *ParkingSpot) Book(now time.Time, userID string, from time.Time, duration time.Duration) (BookingResult, error) {
	return s.BookAs(now, uuid.NewString(), userID, from, duration)
}

// BookAs is Book with the id a fresh booking receives chosen by the caller, so a
// retried attempt files its ledger lines under the same booking.
func (s *ParkingSpot) BookAs(now time.Time, bookingID, userID string, from time.Time, duration time.Duration) (BookingResult, error) {
	if s.Disabled {
		return BookingResult{}, apperrors.Business(apperrors.CodeSpotDisabled, "spot is disabled")
	}
	if userID == s.OwnerID {
		return BookingResult{}, apperrors.Business(apperrors.CodeSpotInvalidBooking, "owners cannot book their own spot")
	}
	if duration <= 0 {
		return BookingResult{}, apperrors.Business(apperrors.CodeBookingInvalid, "booking duration must be positive")
	}
	if from.Before(now) {
		return BookingResult{}, apperrors.Business(apperrors.CodeBookingInvalid, "booking cannot start in the past")
	}

	target := TimeRange{From: from, To: from.Add(duration)}
	if !s.covered(target) {
		return BookingResult{}, apperrors.Business(apperrors.CodeSpotNoAvailability, "spot is not available for the requested time")
	}
	for _, b := range s.Bookings {
		if b.BookedByUserID != userID && b.Range().Overlaps(target) {
			return BookingResult{}, apperrors.Business(apperrors.CodeSpotNoAvailability, "spot is already booked for the requested time")
		}
	}

	merged := target
	absorbed := make(map[int]bool)
	for changed := true; changed; {
		changed = false
		for i, b := range s.Bookings {
			if absorbed[i] || b.Completed || b.BookedByUserID != userID || !b.Range().Touches(merged) {
				continue
			}
			merged = merged.Union(b.Range())
			absorbed[i] = true
			changed = true
		}
	}

	result := BookingResult{Cost: s.Policy().Cost(duration)}
	if len(absorbed) == 0 {
		result.Booking = ParkingSpotBooking{
			ID:             bookingID,
			BookedByUserID: userID,
			From:           merged.From,
			To:             merged.To,
			CreatedAt:      now,
		}
		s.Bookings = append(s.Bookings, result.Booking)
		s.sortBookings()
		return result, nil
	}

	base := -1
	for i := range s.Bookings {
		if absorbed[i] && (base == -1 || s.Bookings[i].From.Before(s.Bookings[base].From)) {
			base = i
		}
	}
	booking := s.Bookings[base]
	booking.From, booking.To = merged.From, merged.To

	kept := make([]ParkingSpotBooking, 0, len(s.Bookings))
	for i, b := range s.Bookings {
		switch {
		case i == base:
		case absorbed[i]:
			booking.MergedIDs = append(booking.MergedIDs, b.Subjects()...)
			result.Absorbed = append(result.Absorbed, b.ID)
		default:
			kept = append(kept, b)
		}
	}
	s.Bookings = append(kept, booking)
	s.sortBookings()

	result.Booking = booking
	return result, nil
}

func (s *ParkingSpot) covered(target TimeRange) bool {
	for _, a := range s.Availabilities {
		if a.Range().Contains(target) {
			return true
		}
	}
	return false
}

// CancelBooking removes a booking on behalf of its booker or the spot owner.
// The booker may cancel until the booking starts; the owner only while the
// start is further away than the owner frozen margin.
func (s *ParkingSpot) CancelBooking(now time.Time, userID, bookingID string) (CancelledBooking, error) {
	idx := s.bookingIndex(bookingID)
	if idx == -1 {
		return CancelledBooking{}, apperrors.Business(apperrors.CodeSpotBookingNotFound, fmt.Sprintf("booking %s not found", bookingID))
	}
	b := s.Bookings[idx]
	if b.Completed {
		return CancelledBooking{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "completed bookings cannot be cancelled")
	}

	var by Canceller
	switch userID {
	case b.BookedByUserID:
		if !now.Before(b.From) {
			return CancelledBooking{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "booking has already started")
		}
		by = CancelledByBooker
	case s.OwnerID:
		if b.From.Before(now.Add(s.Policy().OwnerCancelMargin)) {
			return CancelledBooking{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "booking starts too soon to be cancelled by the owner")
		}
		by = CancelledByOwner
	default:
		return CancelledBooking{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "only the booker or the spot owner can cancel a booking")
	}

	s.Bookings = append(s.Bookings[:idx:idx], s.Bookings[idx+1:]...)
	return CancelledBooking{Booking: b, By: by}, nil
}

// CancelAllBookingsWithByPass drops every booking without any timing check.
func (s *ParkingSpot) CancelAllBookingsWithByPass() []ParkingSpotBooking {
	removed := s.Bookings
	s.Bookings = []ParkingSpotBooking{}
	return removed
}

// CancelAvailability withdraws a window together with the upcoming bookings
// inside it. If any of those bookings starts within the availability frozen
// margin nothing is changed.
func (s *ParkingSpot) CancelAvailability(now time.Time, ownerID, availabilityID string) (CancelledAvailability, error) {
	idx := -1
	for i, a := range s.Availabilities {
		if a.ID == availabilityID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return CancelledAvailability{}, apperrors.Business(apperrors.CodeSpotAvailabilityNotFound, fmt.Sprintf("availability %s not found", availabilityID))
	}
	if ownerID != s.OwnerID {
		return CancelledAvailability{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling, "only the spot owner can cancel an availability")
	}

	availability := s.Availabilities[idx]
	margin := s.Policy().AvailabilityCancelMargin
	cancelled := make(map[int]bool)
	for i, b := range s.Bookings {
		// ended bookings stay for the completion transition
		if b.Completed || !b.To.After(now) || !b.Range().Overlaps(availability.Range()) {
			continue
		}
		if b.From.Before(now.Add(margin)) {
			return CancelledAvailability{}, apperrors.Business(apperrors.CodeSpotInvalidCancelling,
				fmt.Sprintf("booking %s starts too soon to withdraw this availability", b.ID))
		}
		cancelled[i] = true
	}

	result := CancelledAvailability{Availability: availability, Bookings: []ParkingSpotBooking{}}
	kept := make([]ParkingSpotBooking, 0, len(s.Bookings))
	for i, b := range s.Bookings {
		if cancelled[i] {
			result.Bookings = append(result.Bookings, b)
			continue
		}
		kept = append(kept, b)
	}
	s.Bookings = kept
	s.Availabilities = append(s.Availabilities[:idx:idx], s.Availabilities[idx+1:]...)
	return result, nil
}

// RateBooking stores the booker's verdict. A booking is rated once.
func (s *ParkingSpot) RateBooking(userID, bookingID string, outcome rating.Outcome) (ParkingSpotBooking, error) {
	idx := s.bookingIndex(bookingID)
	if idx == -1 {
		return ParkingSpotBooking{}, apperrors.Business(apperrors.CodeSpotBookingNotFound, fmt.Sprintf("booking %s not found", bookingID))
	}
	if !outcome.Valid() {
		return ParkingSpotBooking{}, apperrors.InvalidInput(fmt.Sprintf("unknown rating %q", outcome))
	}
	b := &s.Bookings[idx]
	if b.BookedByUserID != userID {
		return ParkingSpotBooking{}, apperrors.Business(apperrors.CodeSpotInvalidRating, "only the booker can rate a booking")
	}
	if b.Rating != nil {
		return ParkingSpotBooking{}, apperrors.Business(apperrors.CodeSpotInvalidRating, "booking has already been rated")
	}
	o := outcome
	b.Rating = &o
	return *b, nil
}

// CompleteBooking marks an ended booking as completed. Calling it again for the
// same booking is a no-op reported by applied=false.
func (s *ParkingSpot) CompleteBooking(now time.Time, bookingID string) (ParkingSpotBooking, bool, error) {
	idx := s.bookingIndex(bookingID)
	if idx == -1 {
		return ParkingSpotBooking{}, false, apperrors.Business(apperrors.CodeSpotBookingNotFound, fmt.Sprintf("booking %s not found", bookingID))
	}
	b := &s.Bookings[idx]
	if b.Completed {
		return *b, false, nil
	}
	if b.To.After(now) {
		return ParkingSpotBooking{}, false, apperrors.Business(apperrors.CodeBookingInvalid, "booking has not ended yet")
	}
	b.Completed = true
	return *b, true, nil
}

// DueBookings lists bookings that have ended but were not completed yet.
func (s *ParkingSpot) DueBookings(now time.Time) []ParkingSpotBooking {
	due := []ParkingSpotBooking{}
	for _, b := range s.Bookings {
		if !b.Completed && !b.To.After(now) {
			due = append(due, b)
		}
	}
	return due
}

// FreeWindows lists what can still be booked, ignoring windows already over.
func (s *ParkingSpot) FreeWindows(now time.Time) []TimeRange {
	free := []TimeRange{}
	if s.Disabled {
		return free
	}
	margin := s.Policy().BorderMargin
	for _, a := range s.Availabilities {
		for _, w := range a.SplitNonOverlapping(s.Bookings, margin) {
			if w.To.After(now) {
				free = append(free, w)
			}
		}
	}
	return free
}

func (s *ParkingSpot) BookingsOf(userID string) []ParkingSpotBooking {
	mine := []ParkingSpotBooking{}
	for _, b := range s.Bookings {
		if b.BookedByUserID == userID {
			mine = append(mine, b)
		}
	}
	return mine
}

func (s *ParkingSpot) bookingIndex(bookingID string) int {
	for i, b := range s.Bookings {
		if b.ID == bookingID {
			return i
		}
	}
	return -1
}

func (s *ParkingSpot) sortBookings() {
	sort.Slice(s.Bookings, func(i, j int) bool {
		return s.Bookings[i].From.Before(s.Bookings[j].From)
	})
}
