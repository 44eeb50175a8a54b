package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parkshare/internal/migrations/mongo/validators"
	parkingsrepo "parkshare/internal/parkings/repository"
	ratingsrepo "parkshare/internal/ratings/repository"
	spotsrepo "parkshare/internal/spots/repository"
	walletsrepo "parkshare/internal/wallets/repository"
	"parkshare/pkg/logger"
)

var (
	WalletsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	}

	ParkingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "residents", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "booking_requests.from", Value: 1}}},
		{Keys: bson.D{{Key: "booking_requests.to", Value: 1}, {Key: "booking_requests.completed", Value: 1}}},
	}

	ParkingSpotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "parking_id", Value: 1}, {Key: "spot_name", Value: 1}}},
		{Keys: bson.D{{Key: "bookings.booked_by_user_id", Value: 1}}},
		// due bookings for the scheduler
		{Keys: bson.D{{Key: "bookings.completed", Value: 1}, {Key: "bookings.to", Value: 1}}},
	}

	ReputationsIndexes = []mongo.IndexModel{}

	AppliedEventsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "applied_at", Value: 1}}},
	}
)

type collectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running mongo migrations", "database", dbName)

	collections := map[string]collectionDef{
		walletsrepo.CollectionName: {
			Indexes:   WalletsIndexes,
			Validator: validators.WalletValidator,
		},
		parkingsrepo.CollectionName: {
			Indexes:   ParkingsIndexes,
			Validator: validators.ParkingValidator,
		},
		spotsrepo.CollectionName: {
			Indexes:   ParkingSpotsIndexes,
			Validator: validators.ParkingSpotValidator,
		},
		ratingsrepo.CollectionName: {
			Indexes:   ReputationsIndexes,
			Validator: validators.ReputationValidator,
		},
		ratingsrepo.AppliedEventsCollectionName: {
			Indexes:   AppliedEventsIndexes,
			Validator: validators.AppliedEventValidator,
		},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	log.Info("All migrations applied", "collections", len(collections))
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
