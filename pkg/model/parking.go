package model

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/sanitizer"
)

type ParkingName string

func NewParkingName(s string) (ParkingName, error) {
	s = sanitizer.NormalizeDisplayName(s)
	if err := checkVar("parking name", s, "required,notblank,max=50"); err != nil {
		return "", err
	}
	return ParkingName(s), nil
}

type ParkingAddress string

func NewParkingAddress(s string) (ParkingAddress, error) {
	s = sanitizer.NormalizeDisplayName(s)
	if err := checkVar("parking address", s, "required,notblank,max=100"); err != nil {
		return "", err
	}
	return ParkingAddress(s), nil
}

// ParkingCode is the join code residents share, formatted F-XXXXXX.
type ParkingCode string

func NewParkingCode(s string) (ParkingCode, error) {
	s = sanitizer.NormalizeParkingCode(s)
	if err := checkVar("parking code", s, "required,parkingcode"); err != nil {
		return "", err
	}
	return ParkingCode(s), nil
}

func GenerateParkingCode() ParkingCode {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ParkingCode("F-" + strings.ToUpper(hex[:6]))
}

// Parking groups residents around a shared car park. The owner is always a resident.
type Parking struct {
	ID              string                  `json:"id" bson:"_id"`
	OwnerID         string                  `json:"owner_id" bson:"owner_id"`
	Name            ParkingName             `json:"name" bson:"name"`
	Address         ParkingAddress          `json:"address" bson:"address"`
	Code            ParkingCode             `json:"code" bson:"code"`
	MaxSpots        int                     `json:"max_spots" bson:"max_spots"`
	IsNeighbourhood bool                    `json:"is_neighbourhood" bson:"is_neighbourhood"`
	Residents       []string                `json:"residents" bson:"residents"`
	SpotIDs         []string                `json:"spot_ids" bson:"spot_ids"`
	BookingRequests []ParkingBookingRequest `json:"booking_requests" bson:"booking_requests"`
	Version         int64                   `json:"version" bson:"version"`
	CreatedAt       time.Time               `json:"created_at" bson:"created_at"`

	policy Policy
}

type ParkingInfo struct {
	Name            string
	Address         string
	MaxSpots        int
	IsNeighbourhood bool
}

func NewParking(now time.Time, ownerID string, info ParkingInfo) (*Parking, error) {
	ownerID = sanitizer.NormalizeUserID(ownerID)
	if err := checkVar("owner id", ownerID, "required"); err != nil {
		return nil, err
	}
	p := &Parking{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Code:            GenerateParkingCode(),
		Residents:       []string{ownerID},
		SpotIDs:         []string{},
		BookingRequests: []ParkingBookingRequest{},
		CreatedAt:       now,
	}
	if err := p.applyInfo(info); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parking) applyInfo(info ParkingInfo) error {
	name, err := NewParkingName(info.Name)
	if err != nil {
		return err
	}
	address, err := NewParkingAddress(info.Address)
	if err != nil {
		return err
	}
	if err := checkVar("max spots", info.MaxSpots, "gte=1"); err != nil {
		return err
	}
	if info.MaxSpots < len(p.SpotIDs) {
		return apperrors.InvalidInput("max spots cannot be lower than the number of registered spots")
	}
	p.Name = name
	p.Address = address
	p.MaxSpots = info.MaxSpots
	p.IsNeighbourhood = info.IsNeighbourhood
	return nil
}

func (p *Parking) SetPolicy(policy Policy) {
	p.policy = policy
}

func (p *Parking) Policy() Policy {
	if p.policy.isZero() {
		return DefaultPolicy()
	}
	return p.policy
}

func (p *Parking) EditInfo(userID string, info ParkingInfo) error {
	if userID != p.OwnerID {
		return apperrors.Business(apperrors.CodeParkingInvalidEditing, "only the parking owner can edit it")
	}
	return p.applyInfo(info)
}

// CanDelete allows the owner to delete an empty parking. Spots must be removed
// first and accepted requests must have completed, since both still carry money.
func (p *Parking) CanDelete(userID string) error {
	if userID != p.OwnerID {
		return apperrors.Business(apperrors.CodeParkingInvalidDeletion, "only the parking owner can delete it")
	}
	if len(p.SpotIDs) > 0 {
		return apperrors.Business(apperrors.CodeParkingInvalidDeletion, "parking still has registered spots")
	}
	for _, r := range p.BookingRequests {
		if r.Accepted() && !r.Completed {
			return apperrors.Business(apperrors.CodeParkingInvalidDeletion, "parking has accepted requests that are not completed")
		}
	}
	return nil
}

// TransferOwnership hands the parking to another user, who becomes a resident.
func (p *Parking) TransferOwnership(userID, newOwnerID string) error {
	newOwnerID = sanitizer.NormalizeUserID(newOwnerID)
	if userID != p.OwnerID {
		return apperrors.Business(apperrors.CodeParkingInvalidTransfer, "only the parking owner can transfer it")
	}
	if newOwnerID == "" || newOwnerID == p.OwnerID {
		return apperrors.Business(apperrors.CodeParkingInvalidTransfer, "new owner must be a different user")
	}
	p.OwnerID = newOwnerID
	if !p.IsResident(newOwnerID) {
		p.Residents = append(p.Residents, newOwnerID)
	}
	return nil
}

func (p *Parking) IsResident(userID string) bool {
	return slices.Contains(p.Residents, userID)
}

func (p *Parking) EnsureResident(userID string) error {
	if !p.IsResident(userID) {
		return apperrors.Business(apperrors.CodeParkingNotResident, "user is not a resident of this parking")
	}
	return nil
}

func (p *Parking) Join(userID string) error {
	userID = sanitizer.NormalizeUserID(userID)
	if err := checkVar("user id", userID, "required"); err != nil {
		return err
	}
	if p.IsResident(userID) {
		return apperrors.Business(apperrors.CodeParkingAlreadyResident, "user already lives in this parking")
	}
	p.Residents = append(p.Residents, userID)
	return nil
}

// Leave removes a resident and the requests nobody accepted yet. Accepted
// requests stay since money already moved for them.
func (p *Parking) Leave(userID string) error {
	if userID == p.OwnerID {
		return apperrors.Business(apperrors.CodeParkingInvalidLeave, "the owner must transfer the parking before leaving")
	}
	if err := p.EnsureResident(userID); err != nil {
		return err
	}
	p.Residents = slices.DeleteFunc(p.Residents, func(r string) bool { return r == userID })
	p.BookingRequests = slices.DeleteFunc(p.BookingRequests, func(r ParkingBookingRequest) bool {
		return r.RequesterID == userID && !r.Accepted()
	})
	return nil
}

// RegisterSpot attaches a spot owned by a resident. Registering twice is a no-op.
func (p *Parking) RegisterSpot(spotOwnerID, spotID string) error {
	if err := p.EnsureResident(spotOwnerID); err != nil {
		return err
	}
	if slices.Contains(p.SpotIDs, spotID) {
		return nil
	}
	if len(p.SpotIDs) >= p.MaxSpots {
		return apperrors.Business(apperrors.CodeParkingFull, "parking has reached its spot capacity")
	}
	p.SpotIDs = append(p.SpotIDs, spotID)
	return nil
}

func (p *Parking) UnregisterSpot(spotID string) bool {
	before := len(p.SpotIDs)
	p.SpotIDs = slices.DeleteFunc(p.SpotIDs, func(id string) bool { return id == spotID })
	return len(p.SpotIDs) != before
}
