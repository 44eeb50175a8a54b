package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"parkshare/pkg/config"
	mongotx "parkshare/pkg/db/mongo"
	"parkshare/pkg/model"
)

const (
	CollectionName              = "reputations"
	AppliedEventsCollectionName = "applied_outcome_events"
)

var ErrNotFound = errors.New("reputation not found")

type RatingRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Reputation, error)
	// Save inserts a new reputation (version 0) or replaces the stored one if
	// its version still matches.
	Save(ctx context.Context, rep *model.Reputation) error
	// MarkApplied records eventID and reports false when it was already recorded.
	MarkApplied(ctx context.Context, eventID string, at time.Time) (bool, error)

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoRatingRepository struct {
	cfg       *config.Config
	ratings   *mongo.Collection
	applied   *mongo.Collection
	txManager mongotx.TransactionManager
}

func NewMongoRatingRepository(cfg *config.Config) RatingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRatingRepository{
		cfg:       cfg,
		ratings:   db.Collection(CollectionName),
		applied:   db.Collection(AppliedEventsCollectionName),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoRatingRepository) FindByUserID(ctx context.Context, userID string) (*model.Reputation, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var rep model.Reputation
	if err := r.ratings.FindOne(ctx, bson.M{"_id": userID}).Decode(&rep); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to find reputation: %w", err)
	}
	return &rep, nil
}

func (r *mongoRatingRepository) Save(ctx context.Context, rep *model.Reputation) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	read := rep.Version
	rep.Version++

	var err error
	if read == 0 {
		_, err = r.ratings.InsertOne(ctx, rep)
		if mongotx.IsDuplicateKey(err) {
			err = fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, rep.UserID)
		}
	} else {
		err = mongotx.ReplaceVersioned(ctx, r.ratings, rep.UserID, read, rep)
	}
	if err != nil {
		rep.Version = read
		return err
	}
	return nil
}

func (r *mongoRatingRepository) MarkApplied(ctx context.Context, eventID string, at time.Time) (bool, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.applied.InsertOne(ctx, bson.M{"_id": eventID, "applied_at": at})
	if err != nil {
		if mongotx.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record applied event: %w", err)
	}
	return true, nil
}

func (r *mongoRatingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
