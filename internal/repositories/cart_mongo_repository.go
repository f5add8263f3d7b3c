package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealcart/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoCartRepository stores one document per user in a MongoDB collection.
type MongoCartRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoCartRepository creates a new instance of MongoCartRepository.
func NewMongoCartRepository(coll *mongo.Collection) *MongoCartRepository {
	return &MongoCartRepository{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique userId index that AddItem relies on.
func (r *MongoCartRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("userId_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create userId index: %w", err)
	}
	return nil
}

// AddItem is a single upsert. The filter only matches a cart that lacks the
// meal, so when the cart already exists the insert half of the upsert
// collides with the unique userId index. A duplicate key therefore means the
// cart exists: the same update is sent without upsert, which appends the
// item only if it is still missing.
func (r *MongoCartRepository) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error) {
	now := r.now()
	filter := bson.M{
		"userId":       userID,
		"items.idMeal": bson.M{"$ne": item.IDMeal},
	}
	update := bson.M{
		"$setOnInsert": bson.M{"createdAt": now},
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updatedAt": now},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		res, err = r.coll.UpdateOne(ctx, filter, update)
	}
	if err != nil {
		return models.AddOutcomeUnchanged, fmt.Errorf("failed to add item %s to cart of %s: %w", item.IDMeal, userID, err)
	}

	switch {
	case res.UpsertedCount > 0:
		return models.AddOutcomeCreated, nil
	case res.ModifiedCount > 0:
		return models.AddOutcomeAdded, nil
	default:
		return models.AddOutcomeUnchanged, nil
	}
}

// AdjustQuantity applies delta with one findOneAndUpdate. The pipeline adds
// delta to the matching line, capped at models.MaxQuantity, and filters out
// lines left at zero or below, so the document never stores a non-positive
// quantity.
func (r *MongoCartRepository) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	filter := bson.M{"userId": userID, "items.idMeal": idMeal}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"items": bson.M{"$elemMatch": bson.M{"idMeal": idMeal}}})

	var before models.Cart
	err := r.coll.FindOneAndUpdate(ctx, filter, adjustPipeline(idMeal, delta, r.now()), opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.AdjustResult{}, ErrItemNotFound
		}
		return models.AdjustResult{}, fmt.Errorf("failed to adjust item %s in cart of %s: %w", idMeal, userID, err)
	}

	idx := before.FindItem(idMeal)
	if idx < 0 {
		return models.AdjustResult{}, ErrItemNotFound
	}
	newQuantity := models.ApplyDelta(before.Items[idx].Quantity, delta)
	if newQuantity <= 0 {
		return models.AdjustResult{Outcome: models.AdjustOutcomeRemoved, Quantity: newQuantity}, nil
	}
	return models.AdjustResult{Outcome: models.AdjustOutcomeUpdated, Quantity: newQuantity}, nil
}

func adjustPipeline(idMeal string, delta int, now time.Time) mongo.Pipeline {
	delta = models.ClampDelta(delta)
	bumped := bson.M{"$map": bson.M{
		"input": "$items",
		"as":    "it",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$it.idMeal", bson.M{"$literal": idMeal}}},
			bson.M{"$mergeObjects": bson.A{
				"$$it",
				bson.M{"quantity": bson.M{"$min": bson.A{
					bson.M{"$add": bson.A{"$$it.quantity", delta}},
					models.MaxQuantity,
				}}},
			}},
			"$$it",
		}},
	}}
	kept := bson.M{"$filter": bson.M{
		"input": bumped,
		"as":    "it",
		"cond":  bson.M{"$gt": bson.A{"$$it.quantity", 0}},
	}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "items", Value: kept},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

// RemoveItem pulls the item; carts without it are not touched.
func (r *MongoCartRepository) RemoveItem(ctx context.Context, userID, idMeal string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "items.idMeal": idMeal},
		bson.M{
			"$pull": bson.M{"items": bson.M{"idMeal": idMeal}},
			"$set":  bson.M{"updatedAt": r.now()},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove item %s from cart of %s: %w", idMeal, userID, err)
	}
	return res.ModifiedCount > 0, nil
}

// DeleteCart deletes the user's document.
func (r *MongoCartRepository) DeleteCart(ctx context.Context, userID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID})
	if err != nil {
		return false, fmt.Errorf("failed to delete cart of %s: %w", userID, err)
	}
	return res.DeletedCount > 0, nil
}

// GetCart fetches the user's document.
func (r *MongoCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart of %s: %w", userID, err)
	}
	return &cart, nil
}

// Ping checks the server behind the collection.
func (r *MongoCartRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, readpref.Primary())
}
