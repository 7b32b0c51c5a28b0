package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ophion/companion/internal/infrastructure/config"
)

// Mongo holds the client and the database the store works in
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongo connects and pings the configured deployment. Change streams need
// a replica set, so a standalone server connects but cannot push changes.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Mongo{
		Client:   client,
		Database: client.Database(cfg.Database),
	}, nil
}

// Close disconnects the client
func (m *Mongo) Close(ctx context.Context) error {
	if m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(ctx)
}
