package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"parkshare/internal/wallets/repository"
	"parkshare/pkg/config"
	"parkshare/pkg/credits"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
	"parkshare/pkg/model"
)

// ────────────────────────────────────────────────
// In-memory repository with versioned saves
// ────────────────────────────────────────────────

type memoryWalletRepository struct {
	wallets map[string]model.Wallet
	// saveHook runs before each save; returning an error aborts it.
	saveHook func(w *model.Wallet) error
	saves    int
}

func newMemoryWalletRepository() *memoryWalletRepository {
	return &memoryWalletRepository{wallets: map[string]model.Wallet{}}
}

func clone(w model.Wallet) *model.Wallet {
	w.Transactions = append([]model.CreditsTransaction(nil), w.Transactions...)
	return &w
}

func (m *memoryWalletRepository) Create(ctx context.Context, w *model.Wallet) error {
	if _, ok := m.wallets[w.UserID]; ok {
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, w.UserID)
	}
	m.wallets[w.UserID] = *clone(*w)
	return nil
}

func (m *memoryWalletRepository) FindByUserID(ctx context.Context, userID string) (*model.Wallet, error) {
	w, ok := m.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, userID)
	}
	return clone(w), nil
}

func (m *memoryWalletRepository) Save(ctx context.Context, w *model.Wallet) error {
	if m.saveHook != nil {
		if err := m.saveHook(w); err != nil {
			return err
		}
	}
	stored := m.wallets[w.UserID]
	if stored.Version != w.Version {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, w.ID)
	}
	w.Version++
	m.wallets[w.UserID] = *clone(*w)
	m.saves++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log:            logger.Nop(),
		InitialCredits: "10",
		Clock:          func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func TestGet_OpensWalletWithGrant(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())

	w, err := svc.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Credits().String() != "10.00" {
		t.Errorf("expected starting balance 10.00, got %s", w.Credits())
	}

	again, err := svc.Get(context.Background(), "alice")
	if err != nil || again.ID != w.ID {
		t.Errorf("expected the same wallet on second Get, got %v, %v", again, err)
	}
	if len(again.Transactions) != 1 {
		t.Errorf("grant must be applied once, got %d lines", len(again.Transactions))
	}

	if _, err := svc.Get(context.Background(), ""); !apperrors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument for empty user, got %v", err)
	}
}

func TestCharge_Idempotent(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())
	ctx := context.Background()

	req := model.TransactionRequest{
		Reference: "booking-charge:op-1",
		Kind:      model.KindBookingCharge,
		Subject:   "b-1",
		Credits:   credits.FromInt(-3),
		State:     model.Confirmed,
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Charge(ctx, "alice", req); err != nil {
			t.Fatalf("charge %d: unexpected error: %v", i, err)
		}
	}

	w, _ := svc.Get(ctx, "alice")
	if w.Credits().String() != "7.00" {
		t.Errorf("expected 7.00 after one effective charge, got %s", w.Credits())
	}

	req.Credits = credits.FromInt(-4)
	if _, err := svc.Charge(ctx, "alice", req); !apperrors.HasCode(err, apperrors.CodeWalletTransactionConflict) {
		t.Errorf("expected transaction conflict, got %v", err)
	}
}

func TestCharge_RolledBackReferenceIsRejected(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())
	ctx := context.Background()

	req := model.TransactionRequest{
		Reference: "booking-charge:op-2",
		Kind:      model.KindBookingCharge,
		Subject:   "b-2",
		Credits:   credits.FromInt(-1),
		State:     model.Confirmed,
	}
	if _, err := svc.Charge(ctx, "alice", req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Reverse(ctx, "alice", req.Reference); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Charge(ctx, "alice", req)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict for a rolled back reference, got %v", err)
	}
}

func TestMutate_RetriesVersionConflicts(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())
	ctx := context.Background()
	if _, err := svc.Get(ctx, "owner"); err != nil {
		t.Fatal(err)
	}

	// a concurrent writer bumps the stored version once
	raced := false
	repo.saveHook = func(w *model.Wallet) error {
		if !raced {
			raced = true
			stored := repo.wallets[w.UserID]
			stored.Version++
			repo.wallets[w.UserID] = stored
		}
		return nil
	}

	_, err := svc.Charge(ctx, "owner", model.TransactionRequest{
		Reference: "lending-credit:op-3",
		Kind:      model.KindLendingCredit,
		Subject:   "b-3",
		Credits:   credits.FromInt(2),
		State:     model.Pending,
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	n, err := svc.ConfirmSubject(ctx, "owner", "b-3")
	if err != nil || n != 1 {
		t.Errorf("ConfirmSubject() = %d, %v, want 1, nil", n, err)
	}
	n, _ = svc.ConfirmSubject(ctx, "owner", "b-3")
	if n != 0 {
		t.Errorf("repeated ConfirmSubject() = %d, want 0", n)
	}

	w, _ := svc.Get(ctx, "owner")
	if w.Credits().String() != "12.00" || !w.PendingCredits().IsZero() {
		t.Errorf("unexpected balances %s / %s", w.Credits(), w.PendingCredits())
	}
}

func TestMutate_GivesUpAfterAttempts(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())
	ctx := context.Background()
	if _, err := svc.Get(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	repo.saveHook = func(w *model.Wallet) error {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, w.ID)
	}
	_, err := svc.TopUp(ctx, "alice", "admin:1", credits.FromInt(5))
	if !apperrors.HasCode(err, apperrors.CodeConcurrentModification) {
		t.Errorf("expected concurrent modification, got %v", err)
	}

	repo.saveHook = func(*model.Wallet) error { return errors.New("socket closed") }
	_, err = svc.TopUp(ctx, "alice", "admin:2", credits.FromInt(5))
	if !apperrors.HasCode(err, apperrors.CodeInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestReverseSubject(t *testing.T) {
	repo := newMemoryWalletRepository()
	svc := NewWalletService(repo, testConfig())
	ctx := context.Background()

	for _, ref := range []string{"booking-charge:a", "booking-charge:b"} {
		if _, err := svc.Charge(ctx, "alice", model.TransactionRequest{
			Reference: ref, Kind: model.KindBookingCharge, Subject: "b-9",
			Credits: credits.FromInt(-2), State: model.Confirmed,
		}); err != nil {
			t.Fatal(err)
		}
	}

	reversed, err := svc.ReverseSubject(ctx, "alice", "b-9")
	if err != nil || len(reversed) != 2 {
		t.Fatalf("ReverseSubject() = %d lines, %v", len(reversed), err)
	}
	savesBefore := repo.saves
	reversed, _ = svc.ReverseSubject(ctx, "alice", "b-9")
	if len(reversed) != 0 || repo.saves != savesBefore {
		t.Errorf("second ReverseSubject should be a no-op, got %d lines", len(reversed))
	}

	w, _ := svc.Get(ctx, "alice")
	if w.Credits().String() != "10.00" {
		t.Errorf("expected balance restored to 10.00, got %s", w.Credits())
	}
}
