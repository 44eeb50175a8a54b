package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"parkshare/pkg/config"
	mongotx "parkshare/pkg/db/mongo"
	"parkshare/pkg/model"
)

const (
	CollectionName = "parking_spots"
)

var ErrNotFound = errors.New("parking spot not found")

type SpotRepository interface {
	Create(ctx context.Context, spot *model.ParkingSpot) error
	FindByID(ctx context.Context, id string) (*model.ParkingSpot, error)
	FindByParkingID(ctx context.Context, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error)
	// FindByBooker returns the spots holding at least one booking of userID.
	FindByBooker(ctx context.Context, userID string) ([]*model.ParkingSpot, error)
	// FindWithDueBookings returns spots holding ended bookings not completed yet.
	FindWithDueBookings(ctx context.Context, now time.Time, limit int) ([]*model.ParkingSpot, error)
	// Save persists spot if nobody saved it since it was read and bumps its version.
	Save(ctx context.Context, spot *model.ParkingSpot) error
	Delete(ctx context.Context, id string, version int64) error
}

type mongoSpotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSpotRepository(cfg *config.Config) SpotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSpotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSpotRepository) Create(ctx context.Context, spot *model.ParkingSpot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, spot); err != nil {
		return fmt.Errorf("failed to create parking spot: %w", err)
	}
	return nil
}

func (r *mongoSpotRepository) FindByID(ctx context.Context, id string) (*model.ParkingSpot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var spot model.ParkingSpot
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&spot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find parking spot: %w", err)
	}
	return &spot, nil
}

func (r *mongoSpotRepository) FindByParkingID(ctx context.Context, parkingID string, limit int, offset int64) ([]*model.ParkingSpot, int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"parking_id": parkingID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count parking spots: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "spot_name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	spots, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return spots, total, nil
}

func (r *mongoSpotRepository) FindByBooker(ctx context.Context, userID string) ([]*model.ParkingSpot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, bson.M{"bookings.booked_by_user_id": userID}, options.Find())
}

func (r *mongoSpotRepository) FindWithDueBookings(ctx context.Context, now time.Time, limit int) ([]*model.ParkingSpot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"bookings": bson.M{"$elemMatch": bson.M{
		"completed": false,
		"to":        bson.M{"$lte": now},
	}}}
	return r.find(ctx, filter, options.Find().SetLimit(int64(limit)))
}

func (r *mongoSpotRepository) Save(ctx context.Context, spot *model.ParkingSpot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	read := spot.Version
	spot.Version++
	if err := mongotx.ReplaceVersioned(ctx, r.collection, spot.ID, read, spot); err != nil {
		spot.Version = read
		return err
	}
	return nil
}

func (r *mongoSpotRepository) Delete(ctx context.Context, id string, version int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "version": version})
	if err != nil {
		return fmt.Errorf("failed to delete parking spot: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, id)
	}
	return nil
}

func (r *mongoSpotRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.ParkingSpot, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find parking spots: %w", err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			r.cfg.Log.Warn("failed to close cursor", "collection", CollectionName, "error", closeErr)
		}
	}()

	spots := []*model.ParkingSpot{}
	if err := cursor.All(ctx, &spots); err != nil {
		return nil, fmt.Errorf("failed to decode parking spots: %w", err)
	}
	return spots, nil
}
