package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "docslot/internal/bookings/errors"
)

const LockCollectionName = "Booking_locks"

type lockDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoLocker implements advisory locks as documents with a unique _id per key.
// A TTL index on expires_at reaps locks left behind by crashed processes; an expired lock
// can also be taken over before the reaper runs.
type MongoLocker struct {
	collection *mongo.Collection
	opts       Options
	now        func() time.Time
}

func NewMongoLocker(db *mongo.Database, opts Options) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(LockCollectionName),
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

func (l *MongoLocker) Backend() string {
	return "mongo"
}

func (l *MongoLocker) Acquire(ctx context.Context, key Key) (Lease, error) {
	owner := uuid.NewString()

	err := poll(ctx, key, l.opts, func(ctx context.Context) (bool, error) {
		now := l.now().UTC()
		doc := lockDocument{ID: key.String(), Owner: owner, CreatedAt: now, ExpiresAt: now.Add(l.opts.TTL)}

		_, err := l.collection.InsertOne(ctx, doc)
		if err == nil {
			return true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, fmt.Errorf("failed to create booking lock: %w", err)
		}

		res, err := l.collection.UpdateOne(ctx, takeoverFilter(doc.ID, now),
			bson.M{"$set": bson.M{"owner": owner, "created_at": now, "expires_at": doc.ExpiresAt}},
		)
		if err != nil {
			return false, fmt.Errorf("failed to take over expired booking lock: %w", err)
		}
		return res.ModifiedCount == 1, nil
	})
	if err != nil {
		return nil, err
	}

	return &mongoLease{collection: l.collection, id: key.String(), owner: owner}, nil
}

type mongoLease struct {
	collection *mongo.Collection
	id         string
	owner      string
	once       sync.Once
	err        error
}

// Release deletes the lock only while this process still owns it.
func (ls *mongoLease) Release(ctx context.Context) error {
	ls.once.Do(func() {
		res, err := ls.collection.DeleteOne(context.WithoutCancel(ctx), releaseFilter(ls.id, ls.owner))
		switch {
		case err != nil:
			ls.err = fmt.Errorf("failed to delete booking lock: %w", err)
		case res.DeletedCount == 0:
			ls.err = fmt.Errorf("%w: %s", bookingserrors.ErrLockLost, ls.id)
		}
	})
	return ls.err
}

// takeoverFilter matches the lock only once its lease has run out.
func takeoverFilter(id string, now time.Time) bson.M {
	return bson.M{"_id": id, "expires_at": bson.M{"$lt": now}}
}

// releaseFilter matches the lock only while owner still holds it.
func releaseFilter(id, owner string) bson.M {
	return bson.M{"_id": id, "owner": owner}
}
