package service

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"parkshare/internal/ratings/repository"
	"parkshare/pkg/config"
	mongotx "parkshare/pkg/db/mongo"
	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/model"
	"parkshare/pkg/rating"
)

type RatingService interface {
	// Apply moves ownerID's rating by one outcome. Repeating an eventID is a no-op.
	Apply(ctx context.Context, eventID, ownerID string, outcome rating.Outcome) error
	Get(ctx context.Context, userID string) (*model.Reputation, error)
}

type ratingService struct {
	repo repository.RatingRepository
	cfg  *config.Config
}

func NewRatingService(repo repository.RatingRepository, cfg *config.Config) RatingService {
	return &ratingService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *ratingService) Apply(ctx context.Context, eventID, ownerID string, outcome rating.Outcome) error {
	if eventID == "" || ownerID == "" {
		return apperrors.InvalidInput("event ID and owner ID are required")
	}
	if !outcome.Valid() {
		return apperrors.InvalidInput(fmt.Sprintf("unknown rating outcome: %q", outcome))
	}

	duplicate := false
	var updated *model.Reputation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		duplicate, updated = false, nil
		now := s.cfg.Now()
		fresh, err := s.repo.MarkApplied(sessCtx, eventID, now)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}

		rep, err := s.repo.FindByUserID(sessCtx, ownerID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			rep = model.NewReputation(ownerID)
		}
		if err := rep.Record(now, outcome); err != nil {
			return err
		}
		if err := s.repo.Save(sessCtx, rep); err != nil {
			return err
		}
		updated = rep
		return nil
	})

	if err != nil {
		if errors.Is(err, mongotx.ErrVersionConflict) {
			s.cfg.Log.Warn("Reputation modified concurrently", "owner_id", ownerID, "event_id", eventID)
			return apperrors.ConcurrentModification("reputation", ownerID)
		}
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to apply rating outcome",
			"event_id", eventID,
			"owner_id", ownerID,
			"outcome", outcome,
			"error", err,
		)
		return apperrors.Internal("Failed to apply rating outcome", err)
	}

	if duplicate {
		s.cfg.Log.Info("Rating outcome already applied", "event_id", eventID, "owner_id", ownerID)
		return nil
	}

	s.cfg.Log.Info("Rating outcome applied",
		"event_id", eventID,
		"owner_id", ownerID,
		"outcome", outcome,
		"rating", updated.Rating.String(),
	)
	return nil
}

func (s *ratingService) Get(ctx context.Context, userID string) (*model.Reputation, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	rep, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewReputation(userID), nil
		}
		s.cfg.Log.Error("Failed to get reputation", "user_id", userID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve rating", err)
	}
	return rep, nil
}
