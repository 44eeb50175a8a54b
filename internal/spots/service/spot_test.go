package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"parkshare/internal/events"
	"parkshare/internal/spots/repository"
	"parkshare/pkg/config"
	"parkshare/pkg/credits"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
	"parkshare/pkg/middleware"
	"parkshare/pkg/model"
	"parkshare/pkg/rating"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func h(n int) time.Duration { return time.Duration(n) * time.Hour }

// ────────────────────────────────────────────────
// Test doubles
// ────────────────────────────────────────────────

type memorySpotRepository struct {
	spots     map[string]model.ParkingSpot
	createErr error
	saveHook  func(spot *model.ParkingSpot) error
}

func newMemorySpotRepository() *memorySpotRepository {
	return &memorySpotRepository{spots: map[string]model.ParkingSpot{}}
}

func cloneSpot(s model.ParkingSpot) *model.ParkingSpot {
	s.Availabilities = slices.Clone(s.Availabilities)
	s.Bookings = slices.Clone(s.Bookings)
	for i := range s.Bookings {
		s.Bookings[i].MergedIDs = slices.Clone(s.Bookings[i].MergedIDs)
	}
	return &s
}

func (m *memorySpotRepository) Create(ctx context.Context, spot *model.ParkingSpot) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.spots[spot.ID] = *cloneSpot(*spot)
	return nil
}

func (m *memorySpotRepository) FindByID(ctx context.Context, id string) (*model.ParkingSpot, error) {
	s, ok := m.spots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return cloneSpot(s), nil
}

func (m *memorySpotRepository) FindByParkingID(ctx context.Context, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error) {
	out := []*model.ParkingSpot{}
	for _, s := range m.spots {
		if s.ParkingID == parkingID {
			out = append(out, cloneSpot(s))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memorySpotRepository) FindByBooker(ctx context.Context, userID string) ([]*model.ParkingSpot, error) {
	out := []*model.ParkingSpot{}
	for _, s := range m.spots {
		if len(s.BookingsOf(userID)) > 0 {
			out = append(out, cloneSpot(s))
		}
	}
	return out, nil
}

func (m *memorySpotRepository) FindWithDueBookings(ctx context.Context, now time.Time, limit int) ([]*model.ParkingSpot, error) {
	out := []*model.ParkingSpot{}
	for _, s := range m.spots {
		if len(s.DueBookings(now)) > 0 {
			out = append(out, cloneSpot(s))
		}
	}
	return out, nil
}

func (m *memorySpotRepository) Save(ctx context.Context, spot *model.ParkingSpot) error {
	if m.saveHook != nil {
		if err := m.saveHook(spot); err != nil {
			return err
		}
	}
	if m.spots[spot.ID].Version != spot.Version {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, spot.ID)
	}
	spot.Version++
	m.spots[spot.ID] = *cloneSpot(*spot)
	return nil
}

func (m *memorySpotRepository) Delete(ctx context.Context, id string, version int64) error {
	if m.spots[id].Version != version {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, id)
	}
	delete(m.spots, id)
	return nil
}

type fakeParkings struct {
	residents    map[string]bool
	registerErr  error
	registered   []string
	unregistered []string
}

func (f *fakeParkings) GetByID(ctx context.Context, userID, id string) (*model.Parking, error) {
	if !f.residents[userID] {
		return nil, apperrors.Business(apperrors.CodeParkingNotResident, "user is not a resident of this parking")
	}
	return &model.Parking{ID: id}, nil
}

func (f *fakeParkings) RegisterSpot(ctx context.Context, parkingID, spotOwnerID, spotID string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, spotID)
	return nil
}

func (f *fakeParkings) UnregisterSpot(ctx context.Context, parkingID, spotID string) error {
	f.unregistered = append(f.unregistered, spotID)
	return nil
}

// walletLedger runs the real wallet rules in memory, every wallet opening with 10 credits.
type walletLedger struct {
	wallets    map[string]*model.Wallet
	failCharge func(userID string) error
}

func newWalletLedger() *walletLedger {
	return &walletLedger{wallets: map[string]*model.Wallet{}}
}

func (l *walletLedger) wallet(userID string) *model.Wallet {
	if w, ok := l.wallets[userID]; ok {
		return w
	}
	w, _ := model.NewWallet(testNow, userID)
	_, _, _ = w.TopUp(testNow, "initial-grant:"+userID, credits.FromInt(10))
	l.wallets[userID] = w
	return w
}

func (l *walletLedger) Charge(ctx context.Context, userID string, req model.TransactionRequest) (model.CreditsTransaction, error) {
	if l.failCharge != nil {
		if err := l.failCharge(userID); err != nil {
			return model.CreditsTransaction{}, err
		}
	}
	w := l.wallet(userID)
	if w.IsReversed(req.Reference) {
		return model.CreditsTransaction{}, apperrors.Conflict("operation was rolled back")
	}
	tx, _, err := w.Apply(testNow, req)
	return tx, err
}

func (l *walletLedger) ConfirmSubject(ctx context.Context, userID, subject string) (int, error) {
	return l.wallet(userID).ConfirmPending(subject), nil
}

func (l *walletLedger) Reverse(ctx context.Context, userID, reference string) (model.CreditsTransaction, error) {
	tx, _, err := l.wallet(userID).Reverse(testNow, reference, model.ReversalReference(reference))
	return tx, err
}

func (l *walletLedger) ReverseSubject(ctx context.Context, userID, subject string) ([]model.CreditsTransaction, error) {
	return l.wallet(userID).ReverseSubject(testNow, subject)
}

type recordingPublisher struct {
	events []events.BookingOutcomeEvent
	err    error
}

func (p *recordingPublisher) PublishOutcome(ctx context.Context, event events.BookingOutcomeEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	repo      *memorySpotRepository
	parkings  *fakeParkings
	ledger    *walletLedger
	publisher *recordingPublisher
	svc       SpotService
	now       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := testNow
	cfg := &config.Config{
		Log:                      logger.Nop(),
		CreditsPerHour:           "1",
		OwnerCancelMargin:        3 * time.Hour,
		AvailabilityCancelMargin: 3 * time.Hour,
		BorderMargin:             time.Minute,
		Clock:                    func() time.Time { return now },
	}
	f := &fixture{
		repo:      newMemorySpotRepository(),
		parkings:  &fakeParkings{residents: map[string]bool{"owner": true, "alice": true, "bob": true}},
		ledger:    newWalletLedger(),
		publisher: &recordingPublisher{},
		now:       &now,
	}
	f.svc = NewSpotService(f.repo, f.parkings, f.ledger, f.publisher, cfg)
	return f
}

// spot creates a spot owned by "owner" available over [now+fromH, now+toH).
func (f *fixture) spot(t *testing.T, fromH, toH int) *model.ParkingSpot {
	t.Helper()
	ctx := context.Background()
	spot, err := f.svc.Create(ctx, "owner", "parking-1", "A12")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if _, err := f.svc.MakeAvailable(ctx, "owner", spot.ID, testNow.Add(h(fromH)), testNow.Add(h(toH))); err != nil {
		t.Fatalf("MakeAvailable() unexpected error: %v", err)
	}
	return spot
}

func (f *fixture) book(t *testing.T, userID, spotID string, from time.Time, d time.Duration) model.BookingResult {
	t.Helper()
	res, err := f.svc.Book(opContext(userID+from.String()), userID, spotID, from, d)
	if err != nil {
		t.Fatalf("Book() unexpected error: %v", err)
	}
	return res
}

func (f *fixture) balances(userID string) (string, string) {
	w := f.ledger.wallet(userID)
	return w.Credits().String(), w.PendingCredits().String()
}

func opContext(key string) context.Context {
	return context.WithValue(context.Background(), middleware.IdempotencyKeyCtx, key)
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Errorf("expected error code %s, got %v", code, err)
	}
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreate(t *testing.T) {
	t.Run("registers then stores", func(t *testing.T) {
		f := newFixture(t)
		spot, err := f.svc.Create(context.Background(), "owner", "parking-1", "  B 7 ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if spot.SpotName != "B 7" || !slices.Contains(f.parkings.registered, spot.ID) {
			t.Errorf("unexpected spot %+v / registered %v", spot, f.parkings.registered)
		}
	})

	t.Run("parking full", func(t *testing.T) {
		f := newFixture(t)
		f.parkings.registerErr = apperrors.Business(apperrors.CodeParkingFull, "parking has reached its spot capacity")
		_, err := f.svc.Create(context.Background(), "owner", "parking-1", "B7")
		expectCode(t, err, apperrors.CodeParkingFull)
		if len(f.repo.spots) != 0 {
			t.Error("no spot should be stored when registration fails")
		}
	})

	t.Run("insert failure releases the slot", func(t *testing.T) {
		f := newFixture(t)
		f.repo.createErr = errors.New("disk full")
		_, err := f.svc.Create(context.Background(), "owner", "parking-1", "B7")
		expectCode(t, err, apperrors.CodeInternal)
		if len(f.parkings.unregistered) != 1 || f.parkings.unregistered[0] != f.parkings.registered[0] {
			t.Errorf("expected the registered slot to be released, got %v", f.parkings.unregistered)
		}
	})
}

func TestBook_ChargesBothSides(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 1, 24)

	res, err := f.svc.Book(opContext("op-1"), "alice", spot.ID, testNow.Add(h(4)), h(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c, p := f.balances("alice"); c != "8.00" || p != "0.00" {
		t.Errorf("alice balances = %s / %s, want 8.00 / 0.00", c, p)
	}
	if c, p := f.balances("owner"); c != "10.00" || p != "2.00" {
		t.Errorf("owner balances = %s / %s, want 10.00 / 2.00", c, p)
	}
	charge, ok := f.ledger.wallet("alice").Transaction("booking-charge:op-1")
	if !ok || charge.Subject != res.Booking.ID {
		t.Errorf("expected booking charge filed under %s, got %+v", res.Booking.ID, charge)
	}
	if _, ok := f.ledger.wallet("owner").Transaction("lending-credit:op-1"); !ok {
		t.Error("expected a lending credit for the owner")
	}
}

func TestBook_Rejections(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 1, 5)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		from   time.Time
		d      time.Duration
		code   string
	}{
		{"outsider", "mallory", testNow.Add(h(2)), h(1), apperrors.CodeParkingNotResident},
		{"own spot", "owner", testNow.Add(h(2)), h(1), apperrors.CodeSpotInvalidBooking},
		{"outside availability", "alice", testNow.Add(h(4)), h(2), apperrors.CodeSpotNoAvailability},
		{"in the past", "alice", testNow.Add(-h(1)), h(1), apperrors.CodeBookingInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(ctx, tt.userID, spot.ID, tt.from, tt.d)
			expectCode(t, err, tt.code)
		})
	}

	if c, _ := f.balances("alice"); c != "10.00" {
		t.Errorf("rejected bookings must not move money, alice has %s", c)
	}
}

func TestBook_RetriesVersionConflictWithoutDoubleCharge(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 1, 24)

	conflicts := 1
	f.repo.saveHook = func(s *model.ParkingSpot) error {
		if conflicts > 0 {
			conflicts--
			return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, s.ID)
		}
		return nil
	}

	if _, err := f.svc.Book(opContext("op-retry"), "alice", spot.ID, testNow.Add(h(2)), h(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, _ := f.balances("alice"); c != "7.00" {
		t.Errorf("expected a single charge, alice has %s", c)
	}
	if n := len(f.ledger.wallet("alice").Transactions); n != 2 {
		t.Errorf("expected grant + one charge, got %d lines", n)
	}
}

func TestBook_Compensation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "owner credit fails",
			setup: func(f *fixture) {
				f.ledger.failCharge = func(userID string) error {
					if userID == "owner" {
						return apperrors.Internal("Failed to save wallet", errors.New("timeout"))
					}
					return nil
				}
			},
		},
		{
			name: "spot save fails",
			setup: func(f *fixture) {
				f.repo.saveHook = func(*model.ParkingSpot) error { return errors.New("not primary") }
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			spot := f.spot(t, 1, 24)
			tt.setup(f)

			if _, err := f.svc.Book(opContext("op-x"), "alice", spot.ID, testNow.Add(h(2)), h(1)); err == nil {
				t.Fatal("expected error, got nil")
			}
			if c, _ := f.balances("alice"); c != "10.00" {
				t.Errorf("alice should be made whole, has %s", c)
			}
			if c, p := f.balances("owner"); c != "10.00" || p != "0.00" {
				t.Errorf("owner balances = %s / %s, want 10.00 / 0.00", c, p)
			}
			if len(f.repo.spots[spot.ID].Bookings) != 0 {
				t.Error("no booking should be stored")
			}

			// the rolled back operation id cannot be replayed
			f.ledger.failCharge = nil
			f.repo.saveHook = nil
			_, err := f.svc.Book(opContext("op-x"), "alice", spot.ID, testNow.Add(h(2)), h(1))
			expectCode(t, err, apperrors.CodeConflict)
		})
	}
}

func TestCancelBooking(t *testing.T) {
	tests := []struct {
		name        string
		canceller   string
		startsIn    int
		wantCode    string
		wantOutcome rating.Outcome
	}{
		{"booker", "alice", 1, "", rating.Neutral},
		{"owner far ahead", "owner", 5, "", rating.Bad},
		{"owner too late", "owner", 2, apperrors.CodeSpotInvalidCancelling, ""},
		{"stranger", "bob", 5, apperrors.CodeSpotInvalidCancelling, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			spot := f.spot(t, 0, 24)
			res := f.book(t, "alice", spot.ID, testNow.Add(h(tt.startsIn)), h(1))

			_, err := f.svc.CancelBooking(context.Background(), tt.canceller, spot.ID, res.Booking.ID)
			if tt.wantCode != "" {
				expectCode(t, err, tt.wantCode)
				if c, _ := f.balances("alice"); c != "9.00" {
					t.Errorf("rejected cancellation must not refund, alice has %s", c)
				}
				if len(f.publisher.events) != 0 {
					t.Errorf("unexpected events %v", f.publisher.events)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if c, _ := f.balances("alice"); c != "10.00" {
				t.Errorf("alice should be refunded, has %s", c)
			}
			if _, p := f.balances("owner"); p != "0.00" {
				t.Errorf("owner pending credit should be reversed, has %s", p)
			}
			if len(f.publisher.events) != 1 {
				t.Fatalf("expected one event, got %d", len(f.publisher.events))
			}
			ev := f.publisher.events[0]
			if ev.EventID != "cancelled:"+res.Booking.ID || ev.Outcome != tt.wantOutcome || ev.OwnerID != "owner" {
				t.Errorf("unexpected event %+v", ev)
			}
		})
	}
}

func TestCancelBooking_RefundsMergedBookings(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 0, 24)
	f.book(t, "alice", spot.ID, testNow.Add(h(2)), h(1))
	f.book(t, "alice", spot.ID, testNow.Add(h(4)), h(1))
	merged := f.book(t, "alice", spot.ID, testNow.Add(h(3)), h(1))

	if c, _ := f.balances("alice"); c != "7.00" {
		t.Fatalf("expected three charges, alice has %s", c)
	}
	if _, err := f.svc.CancelBooking(context.Background(), "alice", spot.ID, merged.Booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, _ := f.balances("alice"); c != "10.00" {
		t.Errorf("every merged charge should be refunded, alice has %s", c)
	}
}

func TestCancelAvailability_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 1, 10)
	availabilityID := f.repo.spots[spot.ID].Availabilities[0].ID
	soon := f.book(t, "bob", spot.ID, testNow.Add(h(2)), h(1))
	later := f.book(t, "alice", spot.ID, testNow.Add(h(6)), h(1))
	ctx := context.Background()

	_, err := f.svc.CancelAvailability(ctx, "owner", spot.ID, availabilityID)
	expectCode(t, err, apperrors.CodeSpotInvalidCancelling)
	stored := f.repo.spots[spot.ID]
	if len(stored.Bookings) != 2 || len(stored.Availabilities) != 1 {
		t.Fatalf("failed cancellation must leave the spot untouched, got %+v", stored)
	}
	if c, _ := f.balances("alice"); c != "9.00" {
		t.Errorf("failed cancellation must not refund, alice has %s", c)
	}

	if _, err := f.svc.CancelBooking(ctx, "bob", spot.ID, soon.Booking.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := f.svc.CancelAvailability(ctx, "owner", spot.ID, availabilityID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Bookings) != 1 || result.Bookings[0].ID != later.Booking.ID {
		t.Errorf("expected alice's booking to cascade, got %+v", result.Bookings)
	}
	if c, _ := f.balances("alice"); c != "10.00" {
		t.Errorf("cascaded booking should be refunded, alice has %s", c)
	}
	last := f.publisher.events[len(f.publisher.events)-1]
	if last.BookingID != later.Booking.ID || last.Outcome != rating.Bad {
		t.Errorf("cascade should count against the owner, got %+v", last)
	}
}

func TestCompleteDue_ShortBooking(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 0, 1)
	res := f.book(t, "alice", spot.ID, testNow, time.Minute)
	ctx := context.Background()

	if n, err := f.svc.CompleteDue(ctx, 10); err != nil || n != 0 {
		t.Fatalf("nothing is due yet, got %d, %v", n, err)
	}

	*f.now = testNow.Add(time.Minute)
	n, err := f.svc.CompleteDue(ctx, 10)
	if err != nil || n != 1 {
		t.Fatalf("CompleteDue() = %d, %v, want 1, nil", n, err)
	}

	wantOwner := credits.FromInt(10).Add(res.Cost).String()
	if c, p := f.balances("owner"); c != wantOwner || p != "0.00" {
		t.Errorf("owner balances = %s / %s, want %s / 0.00", c, p, wantOwner)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Outcome != rating.Good || f.publisher.events[0].Type != events.BookingCompleted {
		t.Errorf("expected one Good completion event, got %+v", f.publisher.events)
	}
	if !f.repo.spots[spot.ID].Bookings[0].Completed {
		t.Error("booking should be flagged completed")
	}

	if n, _ := f.svc.CompleteDue(ctx, 10); n != 0 || len(f.publisher.events) != 1 {
		t.Errorf("second run should do nothing, got %d completions and %d events", n, len(f.publisher.events))
	}
}

func TestCompleteDue_PublishFailureLeavesBookingDue(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 0, 1)
	f.book(t, "alice", spot.ID, testNow, h(1))
	*f.now = testNow.Add(h(1))

	f.publisher.err = errors.New("broker unreachable")
	if _, err := f.svc.CompleteDue(context.Background(), 10); err == nil {
		t.Fatal("expected error, got nil")
	}
	if f.repo.spots[spot.ID].Bookings[0].Completed {
		t.Fatal("booking must stay due until its outcome is published")
	}

	f.publisher.err = nil
	if n, err := f.svc.CompleteDue(context.Background(), 10); err != nil || n != 1 {
		t.Errorf("retry = %d, %v, want 1, nil", n, err)
	}
}

func TestDelete_SettlesAndRefunds(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 0, 24)
	ended := f.book(t, "alice", spot.ID, testNow, h(1))
	upcoming := f.book(t, "bob", spot.ID, testNow.Add(h(5)), h(1))
	*f.now = testNow.Add(h(1))
	ctx := context.Background()

	expectCode(t, f.svc.Delete(ctx, "alice", spot.ID), apperrors.CodeSpotInvalidDeletion)

	if err := f.svc.Delete(ctx, "owner", spot.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.repo.spots[spot.ID]; ok {
		t.Error("spot should be removed")
	}
	if !slices.Contains(f.parkings.unregistered, spot.ID) {
		t.Error("spot should be detached from its parking")
	}
	if c, p := f.balances("owner"); c != "11.00" || p != "0.00" {
		t.Errorf("owner balances = %s / %s, want 11.00 / 0.00", c, p)
	}
	if c, _ := f.balances("bob"); c != "10.00" {
		t.Errorf("bob should be refunded, has %s", c)
	}

	outcomes := map[string]rating.Outcome{}
	for _, ev := range f.publisher.events {
		outcomes[ev.BookingID] = ev.Outcome
	}
	if outcomes[ended.Booking.ID] != rating.Good || outcomes[upcoming.Booking.ID] != rating.Bad {
		t.Errorf("unexpected outcomes %v", outcomes)
	}
}

func TestRateBooking(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 0, 24)
	res := f.book(t, "alice", spot.ID, testNow.Add(h(1)), h(1))
	ctx := context.Background()

	rated, err := f.svc.RateBooking(ctx, "alice", spot.ID, res.Booking.ID, rating.Bad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rated.Rating == nil || *rated.Rating != rating.Bad {
		t.Errorf("expected stored rating Bad, got %v", rated.Rating)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].EventID != "rated:"+res.Booking.ID {
		t.Errorf("unexpected events %+v", f.publisher.events)
	}

	_, err = f.svc.RateBooking(ctx, "alice", spot.ID, res.Booking.ID, rating.Good)
	expectCode(t, err, apperrors.CodeSpotInvalidRating)
}

func TestFreeWindowsAndMyBookings(t *testing.T) {
	f := newFixture(t)
	spot := f.spot(t, 1, 5)
	f.book(t, "alice", spot.ID, testNow.Add(h(2)), h(1))
	ctx := context.Background()

	windows, err := f.svc.FreeWindows(ctx, "bob", spot.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 2 || !windows[0].To.Equal(testNow.Add(h(2)-time.Minute)) || !windows[1].From.Equal(testNow.Add(h(3)+time.Minute)) {
		t.Errorf("unexpected free windows %+v", windows)
	}
	if _, err := f.svc.FreeWindows(ctx, "mallory", spot.ID); !apperrors.HasCode(err, apperrors.CodeParkingNotResident) {
		t.Errorf("outsiders should not see the spot, got %v", err)
	}

	mine, err := f.svc.MyBookings(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 1 || mine[0].SpotID != spot.ID || mine[0].SpotName != "A12" {
		t.Errorf("unexpected bookings %+v", mine)
	}
	if none, _ := f.svc.MyBookings(ctx, "bob"); len(none) != 0 {
		t.Errorf("bob has no bookings, got %+v", none)
	}
}
