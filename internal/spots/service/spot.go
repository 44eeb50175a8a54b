package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parkshare/internal/events"
	"parkshare/internal/spots/repository"
	"parkshare/pkg/config"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
	"parkshare/pkg/rating"
)

const maxSaveAttempts = 3

func BookingChargeReference(opID string) string {
	return "booking-charge:" + opID
}

func LendingCreditReference(opID string) string {
	return "lending-credit:" + opID
}

// Ledger is the slice of the wallet service bookings move money through.
type Ledger interface {
	Charge(ctx context.Context, userID string, req model.TransactionRequest) (model.CreditsTransaction, error)
	ConfirmSubject(ctx context.Context, userID, subject string) (int, error)
	Reverse(ctx context.Context, userID, reference string) (model.CreditsTransaction, error)
	ReverseSubject(ctx context.Context, userID, subject string) ([]model.CreditsTransaction, error)
}

// Parkings is the slice of the parking service spots depend on.
type Parkings interface {
	GetByID(ctx context.Context, userID, id string) (*model.Parking, error)
	RegisterSpot(ctx context.Context, parkingID, spotOwnerID, spotID string) error
	UnregisterSpot(ctx context.Context, parkingID, spotID string) error
}

// BookingView is a booking together with the spot it belongs to.
type BookingView struct {
	SpotID    string                   `json:"spot_id"`
	SpotName  string                   `json:"spot_name"`
	ParkingID string                   `json:"parking_id"`
	Booking   model.ParkingSpotBooking `json:"booking"`
}

type SpotService interface {
	Create(ctx context.Context, ownerID, parkingID, name string) (*model.ParkingSpot, error)
	Get(ctx context.Context, userID, id string) (*model.ParkingSpot, error)
	List(ctx context.Context, userID, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error)
	Rename(ctx context.Context, userID, id, name string) (*model.ParkingSpot, error)
	Disable(ctx context.Context, userID, id string) (*model.ParkingSpot, error)
	Enable(ctx context.Context, userID, id string) (*model.ParkingSpot, error)
	Delete(ctx context.Context, userID, id string) error

	MakeAvailable(ctx context.Context, userID, id string, from, to time.Time) (model.ParkingSpotAvailability, error)
	CancelAvailability(ctx context.Context, userID, id, availabilityID string) (model.CancelledAvailability, error)
	FreeWindows(ctx context.Context, userID, id string) ([]model.TimeRange, error)

	Book(ctx context.Context, userID, id string, from time.Time, duration time.Duration) (model.BookingResult, error)
	CancelBooking(ctx context.Context, userID, id, bookingID string) (model.CancelledBooking, error)
	RateBooking(ctx context.Context, userID, id, bookingID string, outcome rating.Outcome) (model.ParkingSpotBooking, error)
	MyBookings(ctx context.Context, userID string) ([]BookingView, error)

	// CompleteDue settles ended bookings across spots.
	CompleteDue(ctx context.Context, limit int) (int, error)
}

type spotService struct {
	repo      repository.SpotRepository
	parkings  Parkings
	ledger    Ledger
	publisher events.Publisher
	cfg       *config.Config
}

func NewSpotService(repo repository.SpotRepository, parkings Parkings, ledger Ledger, publisher events.Publisher, cfg *config.Config) SpotService {
	return &spotService{
		repo:      repo,
		parkings:  parkings,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create registers the spot in its parking first so capacity is enforced by the
// parking's version, then stores the spot. A failed insert frees the slot.
func (s *spotService) Create(ctx context.Context, ownerID, parkingID, name string) (*model.ParkingSpot, error) {
	spot, err := model.NewParkingSpot(s.cfg.Now(), ownerID, parkingID, name)
	if err != nil {
		return nil, err
	}

	if err := s.parkings.RegisterSpot(ctx, parkingID, spot.OwnerID, spot.ID); err != nil {
		s.cfg.Log.Warn("Spot registration rejected", "parking_id", parkingID, "owner_id", ownerID, "error", err)
		return nil, err
	}

	if err := s.repo.Create(ctx, spot); err != nil {
		if unregErr := s.parkings.UnregisterSpot(ctx, parkingID, spot.ID); unregErr != nil {
			s.cfg.Log.Error("Failed to release parking slot", "parking_id", parkingID, "spot_id", spot.ID, "error", unregErr)
		}
		s.cfg.Log.Error("Failed to create spot", "parking_id", parkingID, "error", err)
		return nil, apperrors.Internal("Failed to create parking spot", err)
	}

	s.cfg.Log.Info("Spot created", "spot_id", spot.ID, "parking_id", parkingID, "owner_id", spot.OwnerID)
	return s.withPolicy(spot), nil
}

func (s *spotService) Get(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	spot, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.parkings.GetByID(ctx, userID, spot.ParkingID); err != nil {
		return nil, err
	}
	return spot, nil
}

func (s *spotService) List(ctx context.Context, userID, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error) {
	if _, err := s.parkings.GetByID(ctx, userID, parkingID); err != nil {
		return nil, 0, err
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)
	spots, total, err := s.repo.FindByParkingID(ctx, parkingID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list spots", "parking_id", parkingID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve parking spots", err)
	}
	for _, spot := range spots {
		s.withPolicy(spot)
	}
	return spots, total, nil
}

func (s *spotService) Rename(ctx context.Context, userID, id, name string) (*model.ParkingSpot, error) {
	return s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		return spot.Rename(userID, name)
	})
}

func (s *spotService) Disable(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	spot, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		return spot.Disable(userID)
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Spot disabled", "spot_id", id)
	return spot, nil
}

func (s *spotService) Enable(ctx context.Context, userID, id string) (*model.ParkingSpot, error) {
	spot, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		return spot.Enable(userID)
	})
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Spot enabled", "spot_id", id)
	return spot, nil
}

// Delete disables the spot so nothing new lands on it, settles ended bookings,
// refunds the others and removes the spot.
func (s *spotService) Delete(ctx context.Context, userID, id string) error {
	spot, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := spot.CanDelete(userID); err != nil {
		s.cfg.Log.Warn("Spot deletion rejected", "spot_id", id, "user_id", userID, "error", err)
		return err
	}
	if !spot.Disabled {
		if spot, err = s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
			return spot.Disable(userID)
		}); err != nil {
			return err
		}
	}

	var (
		completed []model.ParkingSpotBooking
		cancelled []model.ParkingSpotBooking
	)
	for attempt := 1; ; attempt++ {
		now := s.cfg.Now()
		completed, cancelled = nil, nil
		for _, b := range spot.Bookings {
			switch {
			case b.Completed:
			case !b.To.After(now):
				completed = append(completed, b)
			default:
				cancelled = append(cancelled, b)
			}
		}

		for _, b := range completed {
			if err := s.confirmLending(ctx, spot, b); err != nil {
				return err
			}
		}
		for _, b := range cancelled {
			if err := s.refund(ctx, spot, b); err != nil {
				return err
			}
		}

		err = s.repo.Delete(ctx, id, spot.Version)
		if err == nil {
			break
		}
		if !errors.Is(err, mongotx.ErrVersionConflict) {
			s.cfg.Log.Error("Failed to delete spot", "spot_id", id, "error", err)
			return apperrors.Internal("Failed to delete parking spot", err)
		}
		if attempt == maxSaveAttempts {
			return apperrors.ConcurrentModification("parking spot", id)
		}
		if spot, err = s.load(ctx, id); err != nil {
			return err
		}
	}

	now := s.cfg.Now()
	for _, b := range completed {
		s.publish(ctx, events.Completed(spot, b, now))
	}
	for _, b := range cancelled {
		s.publish(ctx, events.Cancelled(spot, model.CancelledBooking{Booking: b, By: model.CancelledByOwner}, now))
	}
	if err := s.parkings.UnregisterSpot(ctx, spot.ParkingID, id); err != nil {
		s.cfg.Log.Error("Failed to unregister deleted spot", "spot_id", id, "parking_id", spot.ParkingID, "error", err)
	}

	s.cfg.Log.Info("Spot deleted",
		"spot_id", id,
		"user_id", userID,
		"completed_bookings", len(completed),
		"cancelled_bookings", len(cancelled),
	)
	return nil
}

func (s *spotService) MakeAvailable(ctx context.Context, userID, id string, from, to time.Time) (model.ParkingSpotAvailability, error) {
	var availability model.ParkingSpotAvailability
	_, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		if err := spot.EnsureOwner(userID); err != nil {
			return err
		}
		var err error
		availability, err = spot.MakeAvailable(from.UTC(), to.UTC())
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Availability rejected", "spot_id", id, "user_id", userID, "error", err)
		return model.ParkingSpotAvailability{}, err
	}

	s.cfg.Log.Info("Spot made available",
		"spot_id", id,
		"availability_id", availability.ID,
		"from", availability.From,
		"to", availability.To,
	)
	return availability, nil
}

// CancelAvailability withdraws a window. Bookings cascaded with it are refunded
// and count as owner cancellations.
func (s *spotService) CancelAvailability(ctx context.Context, userID, id, availabilityID string) (model.CancelledAvailability, error) {
	now := s.cfg.Now()
	var result model.CancelledAvailability
	spot, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		var err error
		result, err = spot.CancelAvailability(now, userID, availabilityID)
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Availability cancellation rejected", "spot_id", id, "availability_id", availabilityID, "error", err)
		return model.CancelledAvailability{}, err
	}

	var errs []error
	for _, b := range result.Bookings {
		if err := s.refund(ctx, spot, b); err != nil {
			errs = append(errs, err)
			continue
		}
		s.publish(ctx, events.Cancelled(spot, model.CancelledBooking{Booking: b, By: model.CancelledByOwner}, now))
	}
	if err := errors.Join(errs...); err != nil {
		return model.CancelledAvailability{}, apperrors.Internal("Availability withdrawn but some refunds failed", err)
	}

	s.cfg.Log.Info("Availability cancelled",
		"spot_id", id,
		"availability_id", availabilityID,
		"cancelled_bookings", len(result.Bookings),
	)
	return result, nil
}

func (s *spotService) FreeWindows(ctx context.Context, userID, id string) ([]model.TimeRange, error) {
	spot, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return spot.FreeWindows(s.cfg.Now()), nil
}

// Book reserves the spot, charges the booker and owes the owner. Ledger lines
// are keyed by the operation id so a retried call never charges twice; if the
// booking cannot be stored the lines written so far are reversed.
func (s *spotService) Book(ctx context.Context, userID, id string, from time.Time, duration time.Duration) (model.BookingResult, error) {
	spot, err := s.load(ctx, id)
	if err != nil {
		return model.BookingResult{}, err
	}
	if _, err := s.parkings.GetByID(ctx, userID, spot.ParkingID); err != nil {
		return model.BookingResult{}, err
	}

	opID := middleware.OperationID(ctx)
	bookingID := uuid.NewString()
	charges := map[string]string{}

	var result model.BookingResult
	_, err = s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		var err error
		result, err = spot.BookAs(s.cfg.Now(), bookingID, userID, from.UTC(), duration)
		if err != nil {
			return err
		}

		chargeRef := BookingChargeReference(opID)
		if _, err := s.ledger.Charge(ctx, userID, model.TransactionRequest{
			Reference: chargeRef,
			Kind:      model.KindBookingCharge,
			Subject:   result.Booking.ID,
			Credits:   result.Cost.Neg(),
			State:     model.Confirmed,
		}); err != nil {
			return err
		}
		charges[chargeRef] = userID

		creditRef := LendingCreditReference(opID)
		if _, err := s.ledger.Charge(ctx, spot.OwnerID, model.TransactionRequest{
			Reference: creditRef,
			Kind:      model.KindLendingCredit,
			Subject:   result.Booking.ID,
			Credits:   result.Cost,
			State:     model.Pending,
		}); err != nil {
			return err
		}
		charges[creditRef] = spot.OwnerID
		return nil
	})
	if err != nil {
		s.compensate(ctx, charges)
		s.cfg.Log.Warn("Booking rejected",
			"spot_id", id,
			"user_id", userID,
			"from", from,
			"duration", duration,
			"error", err,
		)
		return model.BookingResult{}, err
	}

	s.cfg.Log.Info("Spot booked",
		"spot_id", id,
		"booking_id", result.Booking.ID,
		"user_id", userID,
		"cost", result.Cost.String(),
		"merged", len(result.Absorbed),
	)
	return result, nil
}

func (s *spotService) CancelBooking(ctx context.Context, userID, id, bookingID string) (model.CancelledBooking, error) {
	now := s.cfg.Now()
	var cancelled model.CancelledBooking
	spot, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		var err error
		cancelled, err = spot.CancelBooking(now, userID, bookingID)
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Booking cancellation rejected", "spot_id", id, "booking_id", bookingID, "user_id", userID, "error", err)
		return model.CancelledBooking{}, err
	}

	if err := s.refund(ctx, spot, cancelled.Booking); err != nil {
		return model.CancelledBooking{}, apperrors.Internal("Booking cancelled but the refund failed", err)
	}
	s.publish(ctx, events.Cancelled(spot, cancelled, now))

	s.cfg.Log.Info("Booking cancelled",
		"spot_id", id,
		"booking_id", bookingID,
		"cancelled_by", cancelled.By,
	)
	return cancelled, nil
}

func (s *spotService) RateBooking(ctx context.Context, userID, id, bookingID string, outcome rating.Outcome) (model.ParkingSpotBooking, error) {
	var rated model.ParkingSpotBooking
	spot, err := s.mutate(ctx, id, func(spot *model.ParkingSpot) error {
		var err error
		rated, err = spot.RateBooking(userID, bookingID, outcome)
		return err
	})
	if err != nil {
		return model.ParkingSpotBooking{}, err
	}

	s.publish(ctx, events.Rated(spot, rated, outcome, s.cfg.Now()))
	s.cfg.Log.Info("Booking rated", "spot_id", id, "booking_id", bookingID, "outcome", outcome)
	return rated, nil
}

func (s *spotService) MyBookings(ctx context.Context, userID string) ([]BookingView, error) {
	spots, err := s.repo.FindByBooker(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	views := []BookingView{}
	for _, spot := range spots {
		for _, b := range spot.BookingsOf(userID) {
			views = append(views, BookingView{
				SpotID:    spot.ID,
				SpotName:  spot.SpotName,
				ParkingID: spot.ParkingID,
				Booking:   b,
			})
		}
	}
	return views, nil
}

// CompleteDue confirms the owner's pending credit and announces the outcome
// before flagging each booking, so an interrupted run is finished by the next.
func (s *spotService) CompleteDue(ctx context.Context, limit int) (int, error) {
	now := s.cfg.Now()
	spots, err := s.repo.FindWithDueBookings(ctx, now, limit)
	if err != nil {
		return 0, apperrors.Internal("Failed to find spots with due bookings", err)
	}

	completed := 0
	var errs []error
	for _, found := range spots {
		s.withPolicy(found)
		for _, b := range found.DueBookings(now) {
			if err := s.confirmLending(ctx, found, b); err != nil {
				errs = append(errs, err)
				continue
			}
			if err := s.publisher.PublishOutcome(ctx, events.Completed(found, b, now)); err != nil {
				errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
				continue
			}

			applied := false
			if _, err := s.mutate(ctx, found.ID, func(spot *model.ParkingSpot) error {
				var err error
				_, applied, err = spot.CompleteBooking(now, b.ID)
				return err
			}); err != nil {
				errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
				continue
			}
			if applied {
				completed++
				s.cfg.Log.Info("Booking completed", "spot_id", found.ID, "booking_id", b.ID, "owner_id", found.OwnerID)
			}
		}
	}
	return completed, errors.Join(errs...)
}

func (s *spotService) confirmLending(ctx context.Context, spot *model.ParkingSpot, b model.ParkingSpotBooking) error {
	for _, subject := range b.Subjects() {
		if _, err := s.ledger.ConfirmSubject(ctx, spot.OwnerID, subject); err != nil {
			return fmt.Errorf("booking %s: %w", b.ID, err)
		}
	}
	return nil
}

// refund reverses every ledger line of the booking on both sides.
func (s *spotService) refund(ctx context.Context, spot *model.ParkingSpot, b model.ParkingSpotBooking) error {
	for _, subject := range b.Subjects() {
		for _, userID := range []string{b.BookedByUserID, spot.OwnerID} {
			if _, err := s.ledger.ReverseSubject(ctx, userID, subject); err != nil {
				s.cfg.Log.Error("Failed to refund booking",
					"spot_id", spot.ID,
					"booking_id", b.ID,
					"subject", subject,
					"user_id", userID,
					"error", err,
				)
				return fmt.Errorf("booking %s: %w", b.ID, err)
			}
		}
	}
	return nil
}

func (s *spotService) compensate(ctx context.Context, charges map[string]string) {
	for ref, userID := range charges {
		if _, err := s.ledger.Reverse(ctx, userID, ref); err != nil {
			s.cfg.Log.Error("Failed to compensate ledger entry", "user_id", userID, "reference", ref, "error", err)
		}
	}
}

// publish announces an outcome whose state change is already stored. Event ids
// are derived from the booking, so a later republish is deduplicated downstream.
func (s *spotService) publish(ctx context.Context, event events.BookingOutcomeEvent) {
	if err := s.publisher.PublishOutcome(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish booking outcome",
			"event_id", event.EventID,
			"owner_id", event.OwnerID,
			"outcome", event.Outcome,
			"error", err,
		)
	}
}

func (s *spotService) load(ctx context.Context, id string) (*model.ParkingSpot, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Spot ID cannot be empty")
	}
	spot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Parking spot", id)
		}
		s.cfg.Log.Error("Failed to load spot", "spot_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve parking spot", err)
	}
	return s.withPolicy(spot), nil
}

func (s *spotService) withPolicy(spot *model.ParkingSpot) *model.ParkingSpot {
	spot.SetPolicy(s.cfg.Policy())
	return spot
}

// mutate reloads the spot and reapplies fn until the versioned save wins or the
// attempts run out. Errors from fn are returned untouched.
func (s *spotService) mutate(ctx context.Context, id string, fn func(spot *model.ParkingSpot) error) (*model.ParkingSpot, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		spot, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(spot); err != nil {
			return nil, err
		}

		err = s.repo.Save(ctx, spot)
		if err == nil {
			return spot, nil
		}
		if !errors.Is(err, mongotx.ErrVersionConflict) {
			s.cfg.Log.Error("Failed to save spot", "spot_id", id, "error", err)
			return nil, apperrors.Internal("Failed to save parking spot", err)
		}
		s.cfg.Log.Warn("Spot modified concurrently, retrying", "spot_id", id, "attempt", attempt)
	}
	return nil, apperrors.ConcurrentModification("parking spot", id)
}
