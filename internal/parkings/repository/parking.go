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
	CollectionName = "parkings"
)

var (
	ErrNotFound  = errors.New("parking not found")
	ErrCodeTaken = errors.New("parking code already in use")
)

type ParkingRepository interface {
	Create(ctx context.Context, p *model.Parking) error
	FindByID(ctx context.Context, id string) (*model.Parking, error)
	FindByCode(ctx context.Context, code model.ParkingCode) (*model.Parking, error)
	FindByResident(ctx context.Context, userID string, limit int, offset int64) ([]*model.Parking, int64, error)
	// Save persists p if nobody saved it since it was read and bumps its version.
	Save(ctx context.Context, p *model.Parking) error
	Delete(ctx context.Context, id string, version int64) error

	// FindWithExpiredRequests returns parkings holding unaccepted requests that already started.
	FindWithExpiredRequests(ctx context.Context, now time.Time, limit int) ([]*model.Parking, error)
	// FindWithDueRequests returns parkings holding accepted requests whose window ended.
	FindWithDueRequests(ctx context.Context, now time.Time, limit int) ([]*model.Parking, error)
}

type mongoParkingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoParkingRepository(cfg *config.Config) ParkingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoParkingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoParkingRepository) Create(ctx context.Context, p *model.Parking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, p); err != nil {
		if mongotx.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrCodeTaken, p.Code)
		}
		return fmt.Errorf("failed to create parking: %w", err)
	}
	return nil
}

func (r *mongoParkingRepository) FindByID(ctx context.Context, id string) (*model.Parking, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id)
}

func (r *mongoParkingRepository) FindByCode(ctx context.Context, code model.ParkingCode) (*model.Parking, error) {
	return r.findOne(ctx, bson.M{"code": code}, string(code))
}

func (r *mongoParkingRepository) findOne(ctx context.Context, filter bson.M, key string) (*model.Parking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var p model.Parking
	if err := r.collection.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to find parking: %w", err)
	}
	return &p, nil
}

func (r *mongoParkingRepository) FindByResident(ctx context.Context, userID string, limit int, offset int64) ([]*model.Parking, int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"residents": userID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count parkings: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	parkings, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return parkings, total, nil
}

func (r *mongoParkingRepository) Save(ctx context.Context, p *model.Parking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	read := p.Version
	p.Version++
	if err := mongotx.ReplaceVersioned(ctx, r.collection, p.ID, read, p); err != nil {
		p.Version = read
		return err
	}
	return nil
}

func (r *mongoParkingRepository) Delete(ctx context.Context, id string, version int64) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "version": version})
	if err != nil {
		return fmt.Errorf("failed to delete parking: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", mongotx.ErrVersionConflict, id)
	}
	return nil
}

func (r *mongoParkingRepository) FindWithExpiredRequests(ctx context.Context, now time.Time, limit int) ([]*model.Parking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"booking_requests": bson.M{"$elemMatch": bson.M{
		"accepted_by_user_id": bson.M{"$exists": false},
		"from":                bson.M{"$lte": now},
	}}}
	return r.find(ctx, filter, options.Find().SetLimit(int64(limit)))
}

func (r *mongoParkingRepository) FindWithDueRequests(ctx context.Context, now time.Time, limit int) ([]*model.Parking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"booking_requests": bson.M{"$elemMatch": bson.M{
		"accepted_by_user_id": bson.M{"$exists": true},
		"completed":           false,
		"to":                  bson.M{"$lte": now},
	}}}
	return r.find(ctx, filter, options.Find().SetLimit(int64(limit)))
}

func (r *mongoParkingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Parking, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find parkings: %w", err)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil {
			r.cfg.Log.Warn("failed to close cursor", "collection", CollectionName, "error", closeErr)
		}
	}()

	parkings := []*model.Parking{}
	if err := cursor.All(ctx, &parkings); err != nil {
		return nil, fmt.Errorf("failed to decode parkings: %w", err)
	}
	return parkings, nil
}
