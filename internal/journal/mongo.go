package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/bookjournal-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultTimeout bounds every store round-trip.
const DefaultTimeout = 5 * time.Second

// MongoRepository keeps entries in a MongoDB collection where "userid" is the
// partition (shard) key and "_id" is the entry id.
type MongoRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll, timeout: DefaultTimeout}
}

// EnsureIndexes creates the per-partition listing index. Called on startup from main.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "userid", Value: 1},
			{Key: "dateRead", Value: -1},
		},
		Options: options.Index().SetName("idx_userid_dateread"),
	}
	if _, err := r.coll.Indexes().CreateOne(ctx, model); err != nil {
		return storeError("ensure indexes", err)
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context, userID string) ([]models.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{"userid": userID})
	if err != nil {
		return nil, storeError("list", err)
	}
	defer cur.Close(ctx)

	entries := make([]models.Entry, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, storeError("list", err)
		}
		entries = append(entries, models.FromDocument(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, storeError("list", err)
	}

	SortByDateRead(entries)
	return entries, nil
}

func (r *MongoRepository) Add(ctx context.Context, entry models.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The partition key stays in the filter so a sharded collection can route the write.
	filter := bson.D{{Key: "_id", Value: entry.ID}, {Key: "userid", Value: entry.UserID}}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, filter, entry, opts); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("journal add: %w: %w", ErrDuplicateID, err)
		}
		return storeError("add", err)
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, entryID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc bson.M
	err := r.coll.FindOne(ctx, bson.M{"userid": userID, "_id": entryID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return storeError("delete", err)
	}

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": doc["_id"], "userid": userID}); err != nil {
		return storeError("delete", err)
	}
	return nil
}

// IsAlive runs a count over the sentinel partition. The $facet stage always emits
// exactly one document, so a healthy store answers with a row even when the
// partition is empty.
func (r *MongoRepository) IsAlive(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userid", Value: SentinelPartition}}}},
		{{Key: "$facet", Value: bson.D{{Key: "count", Value: bson.A{bson.D{{Key: "$count", Value: "n"}}}}}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return false, storeError("alive", err)
	}
	defer cur.Close(ctx)

	alive := cur.Next(ctx)
	if err := cur.Err(); err != nil {
		return false, storeError("alive", err)
	}
	return alive, nil
}

// HealthPing folds IsAlive into a single error for startup checks.
func (r *MongoRepository) HealthPing(ctx context.Context) error {
	ok, err := r.IsAlive(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("journal alive: %w", ErrNotConnected)
	}
	return nil
}

func storeError(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("journal %s: %w: %w", op, ErrNotConnected, err)
	}
	return fmt.Errorf("journal %s: %w", op, err)
}
