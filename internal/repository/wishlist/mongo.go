package wishlist

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront/internal/docstore"
	"storefront/internal/domain"
)

type entryDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	ProductID string    `bson:"productId"`
	AddedAt   time.Time `bson:"addedAt"`
}

// Mongo is the document store backend; it implements BulkRemover.
type Mongo struct {
	coll *mongo.Collection
}

// NewMongo relies on the unique (userId, productId) index from
// docstore.EnsureIndexes.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{coll: db.Collection(docstore.WishlistCollection)}
}

func (r *Mongo) Add(ctx context.Context, e domain.WishlistEntry) error {
	doc := entryDocument{ID: e.ID, UserID: e.UserID, ProductID: e.ProductID, AddedAt: e.AddedAt.UTC()}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Mongo) Remove(ctx context.Context, userID, productID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID, "productId": productID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Mongo) List(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "addedAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []entryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.WishlistEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.WishlistEntry{ID: d.ID, UserID: d.UserID, ProductID: d.ProductID, AddedAt: d.AddedAt})
	}
	return out, nil
}

func (r *Mongo) RemoveAll(ctx context.Context, userID string) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}
