package testutil

import (
	"context"
	"testing"
	"time"

	mongoMigration "huddle/internal/migrations/mongo"
	"huddle/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHelper provides a freshly migrated database. Transactions need
// TEST_MONGO_URI to point at a replica set.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

// NewMongoHelper drops and migrates the database TEST_MONGO_DB_<suffix>, so
// test packages running in parallel never share collections.
func NewMongoHelper(t *testing.T, suffix string) *MongoHelper {
	t.Helper()

	env := NewTestEnv()
	if env.MongoURI == "" {
		t.Skipf("%s not set, skipping MongoDB test", EnvMongoURI)
	}
	dbName := env.MongoDatabase + "_" + suffix

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(env.MongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			t.Logf("warning: failed to disconnect from MongoDB: %v", err)
		}
	})

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	if err := client.Database(dbName).Drop(ctx); err != nil {
		t.Fatalf("failed to drop database %s: %v", dbName, err)
	}
	if err := mongoMigration.RunMigration(ctx, client, dbName, logger.Discard()); err != nil {
		t.Fatalf("failed to migrate database %s: %v", dbName, err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}
