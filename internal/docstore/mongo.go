// Package docstore connects to MongoDB, which holds orders and wishlists.
package docstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"storefront/internal/config"
)

const (
	OrdersCollection   = "orders"
	WishlistCollection = "wishlist"
)

// Connect opens a client, pings the primary and returns the configured database.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(serverAPI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

type indexConfig struct {
	collection string
	model      mongo.IndexModel
}

var requiredIndexes = []indexConfig{
	{
		collection: WishlistCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_wishlist_user_product_unique"),
		},
	},
	{
		collection: WishlistCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "addedAt", Value: -1}},
			Options: options.Index().SetName("idx_wishlist_user_added"),
		},
	},
	{
		collection: OrdersCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_orders_user_created"),
		},
	},
	{
		collection: OrdersCollection,
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_orders_status_created"),
		},
	},
}

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique (userId, productId) wishlist constraint.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, idx := range requiredIndexes {
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}
