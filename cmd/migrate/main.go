package main

// Run database migrations:
//   go run ./cmd/migrate [up|status|down]

import (
	"context"
	"log"
	"os"

	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/storage/db"
)

func main() {
	ctx := context.Background()
	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB)
	case "down":
		err = db.RollbackLast(ctx, sqlDB)
	default:
		log.Printf("unknown command %q (want up, status or down)", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s: %v", cmd, err)
		os.Exit(1)
	}
}
