// Package database provides connection setup for MongoDB and Redis.
// Both connections are created once at startup and shared across the
// application via dependency injection. This package owns the connection
// lifecycle (open, configure pool, ping, close).
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cdore/clubhouse/internal/config"
)

// NewMongo creates a new MongoDB client from the given config. The client
// holds its own connection pool, so one client serves the whole process;
// it is connected at startup and disconnected at shutdown, never per call.
func NewMongo(cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	// Retry the ping with exponential backoff. MongoDB may still be starting
	// up when the app container launches, and failing fast here causes
	// crash-loop restarts during Docker Compose cold-starts.
	const maxRetries = 10
	backoff := 1 * time.Second
	var pingErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = client.Ping(pingCtx, nil)
		pingCancel()

		if pingErr == nil {
			return client, nil
		}

		if attempt == maxRetries {
			break
		}

		slog.Warn("mongodb not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()
	_ = client.Disconnect(disconnectCtx)

	return nil, fmt.Errorf("pinging mongodb after %d attempts: %w", maxRetries, pingErr)
}

// EnsureUserIndexes creates the indexes the users collection relies on.
// The unique index on email makes duplicate signups fail at the store layer
// even when two registrations race past the application-level existence check.
func EnsureUserIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	users := client.Database(dbName).Collection("users")

	_, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "name", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	return nil
}
