package seatregistry

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoCollection = "keygate_license_seats"

// validCollectionName matches safe MongoDB collection names.
var validCollectionName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MongoOption configures a MongoRegistry.
type MongoOption func(*MongoRegistry)

// WithCollectionName sets the MongoDB collection name. Default: "keygate_license_seats".
func WithCollectionName(name string) MongoOption {
	return func(r *MongoRegistry) {
		r.collectionName = name
	}
}

// MongoRegistry implements SeatRegistry using MongoDB. The limit check in
// Acquire is count-then-insert; the unique (license_hash, fingerprint)
// index prevents duplicate seats, and a rare race on the last seat can
// transiently overshoot the limit by one until the next Prune.
type MongoRegistry struct {
	collection     *mongo.Collection
	collectionName string
}

// NewMongoRegistry creates a new MongoDB-backed seat registry.
// It creates the necessary indexes on initialization.
func NewMongoRegistry(ctx context.Context, db *mongo.Database, opts ...MongoOption) (*MongoRegistry, error) {
	r := &MongoRegistry{
		collectionName: defaultMongoCollection,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validCollectionName.MatchString(r.collectionName) {
		return nil, fmt.Errorf("invalid collection name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.collectionName)
	}
	r.collection = db.Collection(r.collectionName)

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return r, nil
}

func (r *MongoRegistry) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "license_hash", Value: 1},
				{Key: "fingerprint", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "license_hash", Value: 1},
				{Key: "last_seen_at", Value: 1},
			},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoRegistry) Acquire(ctx context.Context, seat SeatInfo, limit int) (*SeatInfo, error) {
	now := time.Now()
	filter := bson.M{"license_hash": seat.LicenseHash, "fingerprint": seat.Fingerprint}

	// Re-acquisition by the same fingerprint always succeeds.
	held, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("check seat: %w", err)
	}
	if held == 0 && limit > 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"license_hash": seat.LicenseHash})
		if err != nil {
			return nil, fmt.Errorf("count seats: %w", err)
		}
		if int(count) >= limit {
			return nil, ErrSeatsExhausted
		}
	}

	update := bson.M{
		"$set": bson.M{
			"hostname":     seat.Hostname,
			"app_version":  seat.AppVersion,
			"last_seen_at": now,
		},
		"$setOnInsert": bson.M{
			"acquired_at": now,
		},
	}

	// ReturnDocument=After yields the stored values, so acquired_at is
	// correct for re-acquired seats.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var result SeatInfo
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, fmt.Errorf("acquire seat: %w", err)
	}
	return &result, nil
}

func (r *MongoRegistry) Release(ctx context.Context, licenseHash, fingerprint string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"license_hash": licenseHash, "fingerprint": fingerprint})
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Count(ctx context.Context, licenseHash string) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"license_hash": licenseHash})
	if err != nil {
		return 0, fmt.Errorf("count seats: %w", err)
	}
	return int(count), nil
}

func (r *MongoRegistry) List(ctx context.Context, licenseHash string) ([]SeatInfo, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"license_hash": licenseHash})
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	var seats []SeatInfo
	if err := cursor.All(ctx, &seats); err != nil {
		return nil, fmt.Errorf("decode seats: %w", err)
	}
	return seats, nil
}

func (r *MongoRegistry) Touch(ctx context.Context, licenseHash, fingerprint string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"license_hash": licenseHash, "fingerprint": fingerprint},
		bson.M{"$set": bson.M{"last_seen_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("touch seat: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Prune(ctx context.Context, licenseHash string, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"license_hash": licenseHash,
		"last_seen_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("prune seats: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (r *MongoRegistry) Close(_ context.Context) error {
	return nil // caller manages the mongo.Database lifecycle
}
