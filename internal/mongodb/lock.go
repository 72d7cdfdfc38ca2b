package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowmetrics/flowmetrics/internal/logger"
)

// Lock is the TTL-based mutual-exclusion primitive backed by the lock
// collection. It is cooperative and expiry-based, not fencing-token
// protected: the guarded work must itself be idempotent.
type Lock struct {
	col *mongo.Collection
}

// Acquire attempts an atomic conditional upsert of the lock singleton.
// It succeeds when no record exists, when the existing record has expired,
// or when the caller already owns it (reentrant renewal). Never blocks or
// retries internally.
func (l *Lock) Acquire(ctx context.Context, ownerID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err := l.col.FindOneAndUpdate(
		ctx,
		acquireFilter(ownerID, now),
		acquireUpdate(ownerID, now, ttl),
		opts,
	).Err()

	if err != nil {
		// The upsert races with a live lock held by another owner: the
		// filter matches nothing and the insert collides on _id.
		if mongo.IsDuplicateKeyError(err) || errors.Is(err, mongo.ErrNoDocuments) {
			logger.FromContext(ctx).Debug(LogMsgLockContention, "owner_id", ownerID)
			return false, nil
		}
		return false, fmt.Errorf("lock acquire failed: %w", err)
	}

	logger.FromContext(ctx).Debug(LogMsgLockAcquired, "owner_id", ownerID, "ttl", ttl)
	return true, nil
}

// Release expires the lock immediately, but only if the caller still owns
// it. A stale owner cannot release a lock it no longer holds.
func (l *Lock) Release(ctx context.Context, ownerID string) error {
	now := time.Now().UTC()

	_, err := l.col.UpdateOne(
		ctx,
		bson.M{"_id": LockID, "owner_id": ownerID},
		bson.M{"$set": bson.M{"expires_at": now}},
	)
	if err != nil {
		return fmt.Errorf("lock release failed: %w", err)
	}

	logger.FromContext(ctx).Debug(LogMsgLockReleased, "owner_id", ownerID)
	return nil
}

// acquireFilter matches the singleton when it is free for this owner:
// expired, or already owned by the caller.
func acquireFilter(ownerID string, now time.Time) bson.M {
	return bson.M{
		"_id": LockID,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": now}},
			bson.M{"owner_id": ownerID},
		},
	}
}

func acquireUpdate(ownerID string, now time.Time, ttl time.Duration) bson.M {
	return bson.M{
		"$set": bson.M{
			"owner_id":   ownerID,
			"expires_at": now.Add(ttl),
			"updated_at": now,
		},
	}
}
