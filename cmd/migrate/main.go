package main

import (
	"context"
	"os"
	"strconv"
	"time"

	mongoMigration "docslot/internal/migrations/mongo"
	postgresMigration "docslot/internal/migrations/postgres"
	"docslot/pkg/config"
)

const JobName = "migrate"

// Usage: migrate            apply every pending migration
//
//	migrate force <n>  mark postgres schema version n as applied
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.Connect()
	defer cfg.GracefulShutdown()
	cfg.Log.Info("Starting migration job", "storage_driver", cfg.StorageDriver, "lock_backend", cfg.LockBackend)

	if len(os.Args) >= 3 && os.Args[1] == "force" {
		forcePostgres(cfg, os.Args[2])
		return
	}

	if cfg.Client.Mongo != nil {
		if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log); err != nil {
			cfg.Log.Fatal("Mongo migration failed", "error", err)
		}
	}
	if cfg.Client.Postgres != nil {
		if err := postgresMigration.RunMigration(cfg.Client.Postgres, cfg.Log); err != nil {
			cfg.Log.Fatal("Postgres migration failed", "error", err)
		}
	}
	if cfg.Client.Mongo == nil && cfg.Client.Postgres == nil {
		cfg.Log.Warn("Nothing to migrate for the selected backends")
	}

	cfg.Log.Info("Migration completed successfully")
}

func forcePostgres(cfg *config.Config, arg string) {
	if cfg.Client.Postgres == nil {
		cfg.Log.Fatal("force requires STORAGE_DRIVER=postgres")
	}
	version, err := strconv.Atoi(arg)
	if err != nil {
		cfg.Log.Fatal("Invalid migration version", "version", arg, "error", err)
	}
	if err := postgresMigration.Force(cfg.Client.Postgres, version, cfg.Log); err != nil {
		cfg.Log.Fatal("Force failed", "error", err)
	}
}
