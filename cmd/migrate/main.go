package main

import (
	"context"
	"time"

	mongoMigration "huddle/internal/migrations/mongo"
	postgresMigration "huddle/internal/migrations/postgres"
	"huddle/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	defer cfg.Client.GracefulShutdown(cfg.Log)

	cfg.Log.Info("Starting migration job", "store_driver", cfg.StoreDriver)

	var err error
	switch cfg.StoreDriver {
	case config.StoreMongo:
		cfg.SetMongo()
		err = mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	case config.StorePostgres:
		cfg.SetPostgres()
		err = postgresMigration.RunMigration(ctx, cfg.Client.Postgres, cfg.Log)
	default:
		cfg.Log.Info("Nothing to migrate for this store driver")
		return
	}

	if err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		cancel()
		cfg.Client.GracefulShutdown(cfg.Log)
		cfg.Log.Fatal("Migration job aborted")
	}
	cfg.Log.Info("Migration completed successfully")
}
