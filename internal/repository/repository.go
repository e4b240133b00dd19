package repository

import (
	"context"
	"errors"
	"time"

	"cart-order-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("order not found")

// Mongo implementation
type MongoOrderRepository struct {
	col *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection("orders")}
}

// EnsureIndexes creates the indexes the invariants lean on. The partial
// unique index on (user_id, status=in_cart) is what guarantees at most one
// active cart document per user even under concurrent upserts.
func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.StatusInCart}),
		},
		{
			Keys: bson.D{{Key: "code", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"code": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	return err
}

func (m *MongoOrderRepository) FindInCart(ctx context.Context, userID string) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOne(ctx, bson.M{
		"user_id": userID,
		"status":  model.StatusInCart,
	}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return &res, err
}

// UpsertInCart replaces the user's in-cart document with the given fields,
// creating it if absent. Only the in_cart document is ever matched, so a
// paid or otherwise terminal order can never be overwritten through this
// path. Replaying the same snapshot is idempotent.
//
// The filter and the partial unique index can race: two concurrent upserts
// may both miss and both insert, in which case one loses on the index and
// gets a duplicate-key error. That one retries once and lands as an update.
func (m *MongoOrderRepository) UpsertInCart(ctx context.Context, userID string, set, setOnInsert bson.M) (*model.Order, error) {
	filter := bson.M{"user_id": userID, "status": model.StatusInCart}
	update := bson.M{"$set": set}
	if len(setOnInsert) > 0 {
		update["$setOnInsert"] = setOnInsert
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var res model.Order
	err := m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if mongo.IsDuplicateKeyError(err) {
		err = m.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateInCart applies fields to the user's existing in-cart document and
// returns the updated doc. Unlike UpsertInCart it never inserts: when no
// in-cart order exists the write misses with ErrNotFound, so a concurrent
// delete can never be resurrected through this path.
func (m *MongoOrderRepository) UpdateInCart(ctx context.Context, userID string, set bson.M) (*model.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var res model.Order
	err := m.col.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "status": model.StatusInCart},
		bson.M{"$set": set}, opts).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteInCart removes the user's in-cart document and returns it, so the
// caller can release any coin reservation recorded on it.
func (m *MongoOrderRepository) DeleteInCart(ctx context.Context, userID string) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOneAndDelete(ctx, bson.M{
		"user_id": userID,
		"status":  model.StatusInCart,
	}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *MongoOrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Order, error) {
	var res model.Order
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return &res, err
}

func (m *MongoOrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{"code": code}, options.Count().SetLimit(1))
	return n > 0, err
}

// UpdateStatus transitions an order's status with the current status in the
// filter, so the write only lands when the order really is in one of the
// allowed source states. MatchedCount 0 means no such order in an allowed
// state.
func (m *MongoOrderRepository) UpdateStatus(ctx context.Context, filter bson.M, allowedFrom []string, newStatus string, extra bson.M, record model.StatusRecord) error {
	f := bson.M{"status": bson.M{"$in": allowedFrom}}
	for k, v := range filter {
		f[k] = v
	}

	set := bson.M{
		"status":     newStatus,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		set[k] = v
	}

	res, err := m.col.UpdateOne(ctx, f, bson.M{
		"$set":  set,
		"$push": bson.M{"history": record},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDeliveryStatus only matches paid-derived orders; the delivery axis
// has no meaning before payment.
func (m *MongoOrderRepository) UpdateDeliveryStatus(ctx context.Context, id primitive.ObjectID, deliveryStatus string) error {
	res, err := m.col.UpdateOne(ctx, bson.M{
		"_id": id,
		"status": bson.M{"$in": []string{
			model.StatusPaid, model.StatusFullRefund, model.StatusPartialRefund,
		}},
	}, bson.M{
		"$set": bson.M{
			"delivery_status": deliveryStatus,
			"updated_at":      time.Now().UTC(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateFields applies an already-validated partial update.
func (m *MongoOrderRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"user_id": userID})
}

func (m *MongoOrderRepository) FindAll(ctx context.Context) ([]*model.Order, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoOrderRepository) FindByStatus(ctx context.Context, status string) ([]*model.Order, error) {
	return m.find(ctx, bson.M{"status": status})
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M) ([]*model.Order, error) {
	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.Order
	for cur.Next(ctx) {
		var v model.Order
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}
