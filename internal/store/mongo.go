package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DialConfig holds MongoDB connection settings.
type DialConfig struct {
	URI           string        // mongodb://localhost:27017
	Database      string        // database name
	RetryCount    int           // connection attempts before giving up
	RetryInterval time.Duration // wait between attempts
}

// DefaultDialConfig returns sensible defaults for local development.
func DefaultDialConfig() DialConfig {
	return DialConfig{
		URI:           "mongodb://localhost:27017",
		Database:      "echodm",
		RetryCount:    3,
		RetryInterval: 2 * time.Second,
	}
}

// Dial connects to MongoDB, pinging the primary to verify the connection, and
// retries on failure. It returns the database handle used by the stores.
func Dial(ctx context.Context, cfg DialConfig) (*mongo.Database, error) {
	opts := options.Client().ApplyURI(cfg.URI)

	var lastErr error
	for i := 0; i <= cfg.RetryCount; i++ {
		client, err := mongo.Connect(ctx, opts)
		if err == nil {
			if pingErr := client.Ping(ctx, readpref.Primary()); pingErr == nil {
				log.Printf("store: connected to mongodb database=%s", cfg.Database)
				return client.Database(cfg.Database), nil
			} else {
				lastErr = pingErr
				_ = client.Disconnect(ctx)
			}
		} else {
			lastErr = err
		}

		if i < cfg.RetryCount {
			log.Printf("store: mongodb connect attempt %d failed: %v (retrying in %s)",
				i+1, lastErr, cfg.RetryInterval)
			time.Sleep(cfg.RetryInterval)
		}
	}

	return nil, fmt.Errorf("store: mongodb connect after %d attempts: %w", cfg.RetryCount+1, lastErr)
}
