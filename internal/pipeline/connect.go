package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/complaints-etl/internal/config"
	"github.com/JonMunkholm/complaints-etl/internal/load"
	"github.com/JonMunkholm/complaints-etl/internal/logging"
)

// connectMongo returns the demographics collection and a function that
// disconnects the client.
func connectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Collection, func(), error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	disconnect := func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			logging.FromContext(ctx).Error("failed to close mongo connection", "error", err)
		}
	}

	return client.Database(cfg.Database).Collection(cfg.Collection), disconnect, nil
}

// connectPostgres opens the destination pool and returns it with its
// close function.
func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (load.DB, func(), error) {
	pool, err := load.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}
