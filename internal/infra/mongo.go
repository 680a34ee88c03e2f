// README: MongoDB client initialization for the order document store.
package infra

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewMongo connects, pings and returns the named database. maxPool bounds the
// connection pool; zero keeps the driver default.
func NewMongo(ctx context.Context, uri, database string, maxPool uint64) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)
	if maxPool > 0 {
		opts.SetMaxPoolSize(maxPool)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}
	return client, client.Database(database), nil
}
