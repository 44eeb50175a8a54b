package model

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"parkshare/pkg/credits"
	apperrors "parkshare/pkg/errors"
)

// ParkingBookingRequest is an open call for any spot of the parking. It never
// touches a wallet until another resident accepts it.
type ParkingBookingRequest struct {
	ID               string          `json:"id" bson:"id"`
	ParkingID        string          `json:"parking_id" bson:"parking_id"`
	RequesterID      string          `json:"requester_id" bson:"requester_id"`
	From             time.Time       `json:"from" bson:"from"`
	To               time.Time       `json:"to" bson:"to"`
	Bonus            credits.Credits `json:"bonus" bson:"bonus"`
	Cost             credits.Credits `json:"cost" bson:"cost"`
	AcceptedByUserID string          `json:"accepted_by_user_id,omitempty" bson:"accepted_by_user_id,omitempty"`
	AcceptedAt       *time.Time      `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	Completed        bool            `json:"completed" bson:"completed"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at"`
}

func (r ParkingBookingRequest) Accepted() bool {
	return r.AcceptedByUserID != ""
}

func (r ParkingBookingRequest) Range() TimeRange {
	return TimeRange{From: r.From, To: r.To}
}

func (p *Parking) RequestBooking(now time.Time, requesterID string, from, to time.Time, bonus credits.Credits) (ParkingBookingRequest, error) {
	if !to.After(from) {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalid, "request must end after it starts")
	}
	if bonus.IsNegative() {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalid, "bonus cannot be negative")
	}
	if from.Before(now) {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalid, "request cannot start in the past")
	}
	if err := p.EnsureResident(requesterID); err != nil {
		return ParkingBookingRequest{}, err
	}

	req := ParkingBookingRequest{
		ID:          uuid.NewString(),
		ParkingID:   p.ID,
		RequesterID: requesterID,
		From:        from,
		To:          to,
		Bonus:       bonus,
		Cost:        p.Policy().Cost(to.Sub(from)).Add(bonus),
		CreatedAt:   now,
	}
	p.BookingRequests = append(p.BookingRequests, req)
	return req, nil
}

// AcceptRequest settles who lends. The requester pays Cost and the accepter is
// owed the same amount; both sides are left to the caller.
func (p *Parking) AcceptRequest(now time.Time, accepterID, requestID string) (ParkingBookingRequest, error) {
	idx := p.requestIndex(requestID)
	if idx == -1 {
		return ParkingBookingRequest{}, requestNotFound(requestID)
	}
	r := &p.BookingRequests[idx]
	if !p.IsResident(accepterID) || accepterID == r.RequesterID {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalidAccept, "only another resident of the parking can accept this request")
	}
	if r.Accepted() {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestAlreadyAccepted, "request was already accepted")
	}
	if !r.From.After(now) {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalid, "request has already started")
	}

	acceptedAt := now
	r.AcceptedByUserID = accepterID
	r.AcceptedAt = &acceptedAt
	return *r, nil
}

// CancelRequest withdraws an unaccepted request. There is nothing to refund.
func (p *Parking) CancelRequest(requesterID, requestID string) (ParkingBookingRequest, error) {
	idx := p.requestIndex(requestID)
	if idx == -1 {
		return ParkingBookingRequest{}, requestNotFound(requestID)
	}
	r := p.BookingRequests[idx]
	if r.RequesterID != requesterID {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalidCancelling, "only the requester can cancel a request")
	}
	if r.Accepted() {
		return ParkingBookingRequest{}, apperrors.Business(apperrors.CodeRequestInvalidCancelling, "accepted requests cannot be cancelled")
	}
	p.BookingRequests = slices.Delete(p.BookingRequests, idx, idx+1)
	return r, nil
}

// ExpireRequests drops every unaccepted request whose window has started and
// returns them. A second call with the same now returns nothing.
func (p *Parking) ExpireRequests(now time.Time) []ParkingBookingRequest {
	expired := []ParkingBookingRequest{}
	p.BookingRequests = slices.DeleteFunc(p.BookingRequests, func(r ParkingBookingRequest) bool {
		if r.Accepted() || r.From.After(now) {
			return false
		}
		expired = append(expired, r)
		return true
	})
	return expired
}

func (p *Parking) DueAcceptedRequests(now time.Time) []ParkingBookingRequest {
	due := []ParkingBookingRequest{}
	for _, r := range p.BookingRequests {
		if r.Accepted() && !r.Completed && !r.To.After(now) {
			due = append(due, r)
		}
	}
	return due
}

// CompleteRequest flags an accepted request whose window elapsed. Repeated
// calls report applied=false.
func (p *Parking) CompleteRequest(now time.Time, requestID string) (ParkingBookingRequest, bool, error) {
	idx := p.requestIndex(requestID)
	if idx == -1 {
		return ParkingBookingRequest{}, false, requestNotFound(requestID)
	}
	r := &p.BookingRequests[idx]
	if r.Completed {
		return *r, false, nil
	}
	if !r.Accepted() || r.To.After(now) {
		return ParkingBookingRequest{}, false, apperrors.Business(apperrors.CodeRequestInvalid, "request is not due for completion")
	}
	r.Completed = true
	return *r, true, nil
}

func (p *Parking) MyRequests(userID string) []ParkingBookingRequest {
	mine := []ParkingBookingRequest{}
	for _, r := range p.BookingRequests {
		if r.RequesterID == userID {
			mine = append(mine, r)
		}
	}
	return mine
}

// OpenRequestsFor lists what userID could still accept.
func (p *Parking) OpenRequestsFor(now time.Time, userID string) []ParkingBookingRequest {
	open := []ParkingBookingRequest{}
	for _, r := range p.BookingRequests {
		if !r.Accepted() && r.RequesterID != userID && r.From.After(now) {
			open = append(open, r)
		}
	}
	return open
}

func (p *Parking) FindRequest(requestID string) (ParkingBookingRequest, bool) {
	if idx := p.requestIndex(requestID); idx != -1 {
		return p.BookingRequests[idx], true
	}
	return ParkingBookingRequest{}, false
}

func (p *Parking) requestIndex(requestID string) int {
	return slices.IndexFunc(p.BookingRequests, func(r ParkingBookingRequest) bool { return r.ID == requestID })
}

func requestNotFound(id string) error {
	return apperrors.Business(apperrors.CodeRequestNotFound, fmt.Sprintf("booking request %s not found", id))
}
