package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medreza/agt-claim-service/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ClaimCollection = "claim_codes"

// MongoClaimStore stores claims in a collection whose TTL index on expires_at
// lets the server evict records once the retention period has passed.
type MongoClaimStore struct {
	coll      *mongo.Collection
	retention time.Duration
}

func NewMongoClaimStore(db *mongo.Database, retention time.Duration) *MongoClaimStore {
	return &MongoClaimStore{coll: db.Collection(ClaimCollection), retention: retention}
}

// EnsureIndexes creates the TTL index. Mongo removes a record retention after
// its expires_at; until then an expired record is still reported as expired.
func (r *MongoClaimStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().
			SetName("claim_codes_ttl").
			SetExpireAfterSeconds(int32(r.retention / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("failed to create ttl index: %w", err)
	}
	return nil
}

func (r *MongoClaimStore) Insert(ctx context.Context, record models.ClaimRecord) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": record.Code},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

func (r *MongoClaimStore) Get(ctx context.Context, code string) (*models.ClaimRecord, error) {
	var rec models.ClaimRecord
	err := r.coll.FindOne(ctx, bson.M{"_id": code}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return &rec, nil
}

func (r *MongoClaimStore) MarkUsed(ctx context.Context, code string, now time.Time) (*models.ClaimRecord, error) {
	filter := bson.M{
		"_id":        code,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}

	var rec models.ClaimRecord
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to mark claim used: %w", err)
	}

	// the filter did not match; find out why
	current, err := r.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := classify(current, now); err != nil {
		return nil, err
	}
	// the record became redeemable between both calls, which only happens
	// through an Insert overwrite; report it as used by someone else
	return nil, ErrClaimAlreadyUsed
}

func (r *MongoClaimStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired claims: %w", err)
	}
	return res.DeletedCount, nil
}
