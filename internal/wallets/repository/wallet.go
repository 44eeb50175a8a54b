package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"parkshare/pkg/config"
	mongotx "parkshare/pkg/db/mongo"
	"parkshare/pkg/model"
)

const (
	CollectionName = "wallets"
)

var (
	ErrNotFound      = errors.New("wallet not found")
	ErrAlreadyExists = errors.New("wallet already exists")
)

type WalletRepository interface {
	Create(ctx context.Context, w *model.Wallet) error
	FindByUserID(ctx context.Context, userID string) (*model.Wallet, error)
	// Save persists w if nobody saved it since it was read and bumps its version.
	Save(ctx context.Context, w *model.Wallet) error
}

type mongoWalletRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWalletRepository(cfg *config.Config) WalletRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWalletRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoWalletRepository) Create(ctx context.Context, w *model.Wallet) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, w); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, w.UserID)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *mongoWalletRepository) FindByUserID(ctx context.Context, userID string) (*model.Wallet, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var w model.Wallet
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&w); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}
	return &w, nil
}

func (r *mongoWalletRepository) Save(ctx context.Context, w *model.Wallet) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	read := w.Version
	w.Version++
	if err := mongotx.ReplaceVersioned(ctx, r.collection, w.ID, read, w); err != nil {
		w.Version = read
		return err
	}
	return nil
}
