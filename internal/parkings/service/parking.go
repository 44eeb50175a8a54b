package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkshare/internal/parkings/repository"
	"parkshare/pkg/config"
	"parkshare/pkg/credits"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
)

const (
	maxSaveAttempts = 3
	// maxCodeAttempts bounds retries when a generated join code collides.
	maxCodeAttempts = 5
)

func RequestChargeReference(opID string) string {
	return "request-charge:" + opID
}

func RequestCreditReference(opID string) string {
	return "request-credit:" + opID
}

// Ledger is the slice of the wallet service that booking requests move money through.
type Ledger interface {
	Charge(ctx context.Context, userID string, req model.TransactionRequest) (model.CreditsTransaction, error)
	ConfirmSubject(ctx context.Context, userID, subject string) (int, error)
	Reverse(ctx context.Context, userID, reference string) (model.CreditsTransaction, error)
}

type ParkingService interface {
	Create(ctx context.Context, ownerID string, info model.ParkingInfo) (*model.Parking, error)
	GetByID(ctx context.Context, userID, id string) (*model.Parking, error)
	ListMine(ctx context.Context, userID string, limit int, offset int64) ([]*model.Parking, int64, error)
	EditInfo(ctx context.Context, userID, id string, info model.ParkingInfo) (*model.Parking, error)
	Delete(ctx context.Context, userID, id string) error
	TransferOwnership(ctx context.Context, userID, id, newOwnerID string) (*model.Parking, error)
	Join(ctx context.Context, userID, code string) (*model.Parking, error)
	Leave(ctx context.Context, userID, id string) error

	RegisterSpot(ctx context.Context, parkingID, spotOwnerID, spotID string) error
	UnregisterSpot(ctx context.Context, parkingID, spotID string) error

	RequestBooking(ctx context.Context, userID, parkingID string, from, to time.Time, bonus credits.Credits) (model.ParkingBookingRequest, error)
	AcceptRequest(ctx context.Context, userID, parkingID, requestID string) (model.ParkingBookingRequest, error)
	CancelRequest(ctx context.Context, userID, parkingID, requestID string) error
	MyRequests(ctx context.Context, userID, parkingID string) ([]model.ParkingBookingRequest, error)
	OpenRequests(ctx context.Context, userID, parkingID string) ([]model.ParkingBookingRequest, error)

	// ExpireDue drops started, unaccepted requests across parkings.
	ExpireDue(ctx context.Context, limit int) (int, error)
	// CompleteDue settles accepted requests whose window ended.
	CompleteDue(ctx context.Context, limit int) (int, error)
}

type parkingService struct {
	repo   repository.ParkingRepository
	ledger Ledger
	cfg    *config.Config
}

func NewParkingService(repo repository.ParkingRepository, ledger Ledger, cfg *config.Config) ParkingService {
	return &parkingService{
		repo:   repo,
		ledger: ledger,
		cfg:    cfg,
	}
}

func (s *parkingService) Create(ctx context.Context, ownerID string, info model.ParkingInfo) (*model.Parking, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		p, err := model.NewParking(s.cfg.Now(), ownerID, info)
		if err != nil {
			return nil, err
		}

		err = s.repo.Create(ctx, p)
		if err == nil {
			s.cfg.Log.Info("Parking created",
				"parking_id", p.ID,
				"owner_id", p.OwnerID,
				"code", p.Code,
				"max_spots", p.MaxSpots,
			)
			return s.withPolicy(p), nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			s.cfg.Log.Error("Failed to create parking", "owner_id", ownerID, "error", err)
			return nil, apperrors.Internal("Failed to create parking", err)
		}
		s.cfg.Log.Warn("Parking code collision, regenerating", "code", p.Code, "attempt", attempt)
	}
	return nil, apperrors.Internal("Failed to create parking", repository.ErrCodeTaken)
}

// GetByID shows a parking to its residents only.
func (s *parkingService) GetByID(ctx context.Context, userID, id string) (*model.Parking, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.EnsureResident(userID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *parkingService) ListMine(ctx context.Context, userID string, limit int, offset int64) ([]*model.Parking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	parkings, total, err := s.repo.FindByResident(ctx, userID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list parkings", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve parkings", err)
	}
	for _, p := range parkings {
		s.withPolicy(p)
	}
	return parkings, total, nil
}

func (s *parkingService) EditInfo(ctx context.Context, userID, id string, info model.ParkingInfo) (*model.Parking, error) {
	p, err := s.mutate(ctx, id, func(p *model.Parking) error {
		return p.EditInfo(userID, info)
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Parking updated", "parking_id", id, "user_id", userID)
	return p, nil
}

func (s *parkingService) Delete(ctx context.Context, userID, id string) error {
	p, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := p.CanDelete(userID); err != nil {
		s.cfg.Log.Warn("Parking deletion rejected", "parking_id", id, "user_id", userID, "error", err)
		return err
	}

	if err := s.repo.Delete(ctx, id, p.Version); err != nil {
		if errors.Is(err, mongotx.ErrVersionConflict) {
			return apperrors.ConcurrentModification("parking", id)
		}
		s.cfg.Log.Error("Failed to delete parking", "parking_id", id, "error", err)
		return apperrors.Internal("Failed to delete parking", err)
	}

	s.cfg.Log.Info("Parking deleted", "parking_id", id, "user_id", userID)
	return nil
}

func (s *parkingService) TransferOwnership(ctx context.Context, userID, id, newOwnerID string) (*model.Parking, error) {
	p, err := s.mutate(ctx, id, func(p *model.Parking) error {
		return p.TransferOwnership(userID, newOwnerID)
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Parking ownership transferred", "parking_id", id, "from", userID, "to", p.OwnerID)
	return p, nil
}

func (s *parkingService) Join(ctx context.Context, userID, code string) (*model.Parking, error) {
	parkingCode, err := model.NewParkingCode(code)
	if err != nil {
		return nil, err
	}

	found, err := s.repo.FindByCode(ctx, parkingCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Parking")
		}
		s.cfg.Log.Error("Failed to find parking by code", "error", err)
		return nil, apperrors.Internal("Failed to retrieve parking", err)
	}

	p, err := s.mutate(ctx, found.ID, func(p *model.Parking) error {
		return p.Join(userID)
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Resident joined parking", "parking_id", p.ID, "user_id", userID)
	return p, nil
}

func (s *parkingService) Leave(ctx context.Context, userID, id string) error {
	if _, err := s.mutate(ctx, id, func(p *model.Parking) error {
		return p.Leave(userID)
	}); err != nil {
		return err
	}
	s.cfg.Log.Info("Resident left parking", "parking_id", id, "user_id", userID)
	return nil
}

func (s *parkingService) RegisterSpot(ctx context.Context, parkingID, spotOwnerID, spotID string) error {
	_, err := s.mutate(ctx, parkingID, func(p *model.Parking) error {
		return p.RegisterSpot(spotOwnerID, spotID)
	})
	return err
}

func (s *parkingService) UnregisterSpot(ctx context.Context, parkingID, spotID string) error {
	_, err := s.mutate(ctx, parkingID, func(p *model.Parking) error {
		p.UnregisterSpot(spotID)
		return nil
	})
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		// parking already gone, nothing left to detach from
		return nil
	}
	return err
}

func (s *parkingService) RequestBooking(ctx context.Context, userID, parkingID string, from, to time.Time, bonus credits.Credits) (model.ParkingBookingRequest, error) {
	var req model.ParkingBookingRequest
	_, err := s.mutate(ctx, parkingID, func(p *model.Parking) error {
		var err error
		req, err = p.RequestBooking(s.cfg.Now(), userID, from.UTC(), to.UTC(), bonus)
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Booking request rejected", "parking_id", parkingID, "user_id", userID, "error", err)
		return model.ParkingBookingRequest{}, err
	}

	s.cfg.Log.Info("Booking request created",
		"parking_id", parkingID,
		"request_id", req.ID,
		"requester_id", userID,
		"cost", req.Cost.String(),
	)
	return req, nil
}

// AcceptRequest charges the requester, owes the accepter, then records the
// acceptance. If the acceptance cannot be stored both ledger lines are reversed.
func (s *parkingService) AcceptRequest(ctx context.Context, userID, parkingID, requestID string) (model.ParkingBookingRequest, error) {
	opID := middleware.OperationID(ctx)
	charges := map[string]string{}

	var accepted model.ParkingBookingRequest
	_, err := s.mutate(ctx, parkingID, func(p *model.Parking) error {
		var err error
		accepted, err = p.AcceptRequest(s.cfg.Now(), userID, requestID)
		if err != nil {
			return err
		}

		chargeRef := RequestChargeReference(opID)
		if _, err := s.ledger.Charge(ctx, accepted.RequesterID, model.TransactionRequest{
			Reference: chargeRef,
			Kind:      model.KindRequestCharge,
			Subject:   accepted.ID,
			Credits:   accepted.Cost.Neg(),
			State:     model.Confirmed,
		}); err != nil {
			return err
		}
		charges[chargeRef] = accepted.RequesterID

		creditRef := RequestCreditReference(opID)
		if _, err := s.ledger.Charge(ctx, userID, model.TransactionRequest{
			Reference: creditRef,
			Kind:      model.KindRequestCredit,
			Subject:   accepted.ID,
			Credits:   accepted.Cost,
			State:     model.Pending,
		}); err != nil {
			return err
		}
		charges[creditRef] = userID
		return nil
	})
	if err != nil {
		s.compensate(ctx, charges)
		s.cfg.Log.Warn("Booking request acceptance failed",
			"parking_id", parkingID,
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		return model.ParkingBookingRequest{}, err
	}

	s.cfg.Log.Info("Booking request accepted",
		"parking_id", parkingID,
		"request_id", requestID,
		"requester_id", accepted.RequesterID,
		"accepter_id", userID,
		"cost", accepted.Cost.String(),
	)
	return accepted, nil
}

func (s *parkingService) compensate(ctx context.Context, charges map[string]string) {
	for ref, userID := range charges {
		if _, err := s.ledger.Reverse(ctx, userID, ref); err != nil {
			s.cfg.Log.Error("Failed to compensate ledger entry",
				"user_id", userID,
				"reference", ref,
				"error", err,
			)
		}
	}
}

func (s *parkingService) CancelRequest(ctx context.Context, userID, parkingID, requestID string) error {
	if _, err := s.mutate(ctx, parkingID, func(p *model.Parking) error {
		_, err := p.CancelRequest(userID, requestID)
		return err
	}); err != nil {
		return err
	}
	s.cfg.Log.Info("Booking request cancelled", "parking_id", parkingID, "request_id", requestID, "user_id", userID)
	return nil
}

func (s *parkingService) MyRequests(ctx context.Context, userID, parkingID string) ([]model.ParkingBookingRequest, error) {
	p, err := s.GetByID(ctx, userID, parkingID)
	if err != nil {
		return nil, err
	}
	return p.MyRequests(userID), nil
}

func (s *parkingService) OpenRequests(ctx context.Context, userID, parkingID string) ([]model.ParkingBookingRequest, error) {
	p, err := s.GetByID(ctx, userID, parkingID)
	if err != nil {
		return nil, err
	}
	return p.OpenRequestsFor(s.cfg.Now(), userID), nil
}

func (s *parkingService) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.cfg.Now()
	parkings, err := s.repo.FindWithExpiredRequests(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Internal("Failed to find parkings with expired requests", err)
	}

	expired := 0
	var errs []error
	for _, found := range parkings {
		var dropped []model.ParkingBookingRequest
		if _, err := s.mutate(ctx, found.ID, func(p *model.Parking) error {
			dropped = p.ExpireRequests(now)
			return nil
		}); err != nil {
			errs = append(errs, fmt.Errorf("parking %s: %w", found.ID, err))
			continue
		}
		for _, r := range dropped {
			s.cfg.Log.Info("Booking request expired", "parking_id", found.ID, "request_id", r.ID, "requester_id", r.RequesterID)
		}
		expired += len(dropped)
	}
	return expired, errors.Join(errs...)
}

// CompleteDue confirms the accepter's pending credit before flagging the
// request, so a crash in between is repaired by the next run.
func (s *parkingService) CompleteDue(ctx context.Context, limit int) (int, error) {
	now := s.cfg.Now()
	parkings, err := s.repo.FindWithDueRequests(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Internal("Failed to find parkings with due requests", err)
	}

	completed := 0
	var errs []error
	for _, found := range parkings {
		for _, r := range found.DueAcceptedRequests(now) {
			if _, err := s.ledger.ConfirmSubject(ctx, r.AcceptedByUserID, r.ID); err != nil {
				errs = append(errs, fmt.Errorf("request %s: %w", r.ID, err))
				continue
			}

			applied := false
			if _, err := s.mutate(ctx, found.ID, func(p *model.Parking) error {
				var err error
				_, applied, err = p.CompleteRequest(now, r.ID)
				return err
			}); err != nil {
				errs = append(errs, fmt.Errorf("request %s: %w", r.ID, err))
				continue
			}
			if applied {
				completed++
				s.cfg.Log.Info("Booking request completed", "parking_id", found.ID, "request_id", r.ID, "accepter_id", r.AcceptedByUserID)
			}
		}
	}
	return completed, errors.Join(errs...)
}

func (s *parkingService) load(ctx context.Context, id string) (*model.Parking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Parking ID cannot be empty")
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Parking", id)
		}
		s.cfg.Log.Error("Failed to load parking", "parking_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve parking", err)
	}
	return s.withPolicy(p), nil
}

func (s *parkingService) withPolicy(p *model.Parking) *model.Parking {
	p.SetPolicy(s.cfg.Policy())
	return p
}

// mutate reloads the parking and reapplies fn until the versioned save wins or
// the attempts run out. Errors from fn are returned untouched.
func (s *parkingService) mutate(ctx context.Context, id string, fn func(p *model.Parking) error) (*model.Parking, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, mongotx.ErrVersionConflict) {
			s.cfg.Log.Error("Failed to save parking", "parking_id", id, "error", err)
			return nil, apperrors.Internal("Failed to save parking", err)
		}
		s.cfg.Log.Warn("Parking modified concurrently, retrying", "parking_id", id, "attempt", attempt)
	}
	return nil, apperrors.ConcurrentModification("parking", id)
}
