package order

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type mongoRepo struct {
	coll   *mongo.Collection
	logger zerolog.Logger
}

func NewMongo(db *mongo.Database, logger zerolog.Logger) Repository {
	return &mongoRepo{coll: db.Collection(docstore.OrdersCollection), logger: logger}
}

func (r *mongoRepo) Create(ctx context.Context, o domain.Order) error {
	if _, err := r.coll.InsertOne(ctx, toDocument(o)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *mongoRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var doc orderDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, err
	}
	return doc.toDomain()
}

func (r *mongoRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

func (r *mongoRepo) List(ctx context.Context, f Filter) ([]domain.Order, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return r.find(ctx, filter)
}

func (r *mongoRepo) find(ctx context.Context, filter bson.M) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return decodeAll(docs)
}

func (r *mongoRepo) SetStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) (domain.Order, error) {
	filter := bson.M{"_id": id, "status": string(from)}
	update := bson.M{"$set": bson.M{"status": string(to), "updatedAt": at.UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc orderDocument
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return domain.Order{}, getErr
		}
		r.logger.Debug().Str("order_id", id).Str("from", string(from)).Msg("order status changed concurrently")
		return domain.Order{}, domain.ErrStateConflict
	}
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain()
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
