package service

import (
	"context"
	"errors"
	"fmt"

	"parkshare/internal/wallets/repository"
	"parkshare/pkg/config"
	"parkshare/pkg/credits"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/model"
)

const maxSaveAttempts = 3

func InitialGrantReference(userID string) string {
	return "initial-grant:" + userID
}

type WalletService interface {
	// Get returns the user's wallet, opening it with the starting grant on first use.
	Get(ctx context.Context, userID string) (*model.Wallet, error)
	Charge(ctx context.Context, userID string, req model.TransactionRequest) (model.CreditsTransaction, error)
	ConfirmSubject(ctx context.Context, userID, subject string) (int, error)
	Reverse(ctx context.Context, userID, reference string) (model.CreditsTransaction, error)
	ReverseSubject(ctx context.Context, userID, subject string) ([]model.CreditsTransaction, error)
	TopUp(ctx context.Context, userID, reference string, amount credits.Credits) (model.CreditsTransaction, error)
}

type walletService struct {
	repo repository.WalletRepository
	cfg  *config.Config
}

func NewWalletService(repo repository.WalletRepository, cfg *config.Config) WalletService {
	return &walletService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *walletService) Get(ctx context.Context, userID string) (*model.Wallet, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	w, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.cfg.Log.Error("Failed to load wallet", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve wallet", err)
	}
	return s.open(ctx, userID)
}

func (s *walletService) open(ctx context.Context, userID string) (*model.Wallet, error) {
	now := s.cfg.Now()
	w, err := model.NewWallet(now, userID)
	if err != nil {
		return nil, err
	}
	if grant := s.cfg.StartingCredits(); grant.IsPositive() {
		if _, _, err := w.TopUp(now, InitialGrantReference(userID), grant); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, w); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// another request opened it first
			return s.repo.FindByUserID(ctx, userID)
		}
		s.cfg.Log.Error("Failed to open wallet", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to open wallet", err)
	}

	s.cfg.Log.Info("Wallet opened", "user_id", userID, "credits", w.Credits().String())
	return w, nil
}

func (s *walletService) Charge(ctx context.Context, userID string, req model.TransactionRequest) (model.CreditsTransaction, error) {
	var tx model.CreditsTransaction
	err := s.mutate(ctx, userID, func(w *model.Wallet) (bool, error) {
		if w.IsReversed(req.Reference) {
			return false, apperrors.Conflict(fmt.Sprintf(
				"operation %s was rolled back, retry with a new idempotency key", req.Reference))
		}
		var applied bool
		var err error
		tx, applied, err = w.Apply(s.cfg.Now(), req)
		return applied, err
	})
	if err != nil {
		s.cfg.Log.Warn("Wallet charge rejected",
			"user_id", userID,
			"reference", req.Reference,
			"error", err,
		)
		return model.CreditsTransaction{}, err
	}

	s.cfg.Log.Info("Wallet transaction applied",
		"user_id", userID,
		"reference", tx.Reference,
		"kind", tx.Kind,
		"credits", tx.Credits.String(),
		"state", tx.State,
	)
	return tx, nil
}

func (s *walletService) ConfirmSubject(ctx context.Context, userID, subject string) (int, error) {
	confirmed := 0
	err := s.mutate(ctx, userID, func(w *model.Wallet) (bool, error) {
		confirmed = w.ConfirmPending(subject)
		return confirmed > 0, nil
	})
	if err != nil {
		return 0, err
	}

	if confirmed > 0 {
		s.cfg.Log.Info("Pending credits confirmed", "user_id", userID, "subject", subject, "count", confirmed)
	}
	return confirmed, nil
}

func (s *walletService) Reverse(ctx context.Context, userID, reference string) (model.CreditsTransaction, error) {
	var tx model.CreditsTransaction
	err := s.mutate(ctx, userID, func(w *model.Wallet) (bool, error) {
		var applied bool
		var err error
		tx, applied, err = w.Reverse(s.cfg.Now(), reference, model.ReversalReference(reference))
		return applied, err
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reverse transaction", "user_id", userID, "reference", reference, "error", err)
		return model.CreditsTransaction{}, err
	}

	s.cfg.Log.Info("Transaction reversed", "user_id", userID, "reference", reference)
	return tx, nil
}

func (s *walletService) ReverseSubject(ctx context.Context, userID, subject string) ([]model.CreditsTransaction, error) {
	var reversed []model.CreditsTransaction
	err := s.mutate(ctx, userID, func(w *model.Wallet) (bool, error) {
		var err error
		reversed, err = w.ReverseSubject(s.cfg.Now(), subject)
		return len(reversed) > 0, err
	})
	if err != nil {
		s.cfg.Log.Error("Failed to reverse subject", "user_id", userID, "subject", subject, "error", err)
		return nil, err
	}

	if len(reversed) > 0 {
		s.cfg.Log.Info("Subject reversed", "user_id", userID, "subject", subject, "count", len(reversed))
	}
	return reversed, nil
}

func (s *walletService) TopUp(ctx context.Context, userID, reference string, amount credits.Credits) (model.CreditsTransaction, error) {
	var tx model.CreditsTransaction
	err := s.mutate(ctx, userID, func(w *model.Wallet) (bool, error) {
		var applied bool
		var err error
		tx, applied, err = w.TopUp(s.cfg.Now(), reference, amount)
		return applied, err
	})
	if err != nil {
		return model.CreditsTransaction{}, err
	}

	s.cfg.Log.Info("Wallet topped up", "user_id", userID, "reference", reference, "credits", amount.String())
	return tx, nil
}

// mutate reloads the wallet and reapplies fn until the versioned save wins or
// the attempts run out. fn reports whether it changed anything worth saving.
func (s *walletService) mutate(ctx context.Context, userID string, fn func(w *model.Wallet) (bool, error)) error {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		w, err := s.Get(ctx, userID)
		if err != nil {
			return err
		}

		changed, err := fn(w)
		if err != nil || !changed {
			return err
		}

		err = s.repo.Save(ctx, w)
		if err == nil {
			return nil
		}
		if !errors.Is(err, mongotx.ErrVersionConflict) {
			s.cfg.Log.Error("Failed to save wallet", "user_id", userID, "error", err)
			return apperrors.Internal("Failed to save wallet", err)
		}
		s.cfg.Log.Warn("Wallet modified concurrently, retrying", "user_id", userID, "attempt", attempt)
	}
	return apperrors.ConcurrentModification("wallet", userID)
}
