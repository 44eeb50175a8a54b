package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrVersionConflict means the document changed (or vanished) since it was read.
var ErrVersionConflict = errors.New("document version conflict")

// WithTimeout bounds ctx by timeout unless it is a transaction session, which
// cannot be wrapped without losing the session.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// ReplaceVersioned stores doc only if the stored copy still carries version.
// The caller bumps the version inside doc before calling.
func ReplaceVersioned(ctx context.Context, coll *mongo.Collection, id string, version int64, doc any) error {
	result, err := coll.ReplaceOne(ctx, bson.M{"_id": id, "version": version}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace document %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrVersionConflict, id)
	}
	return nil
}

func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
