package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/kitrunner/internal/config"
	"github.com/safar/kitrunner/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down|status]")
	}

	command := os.Args[1]
	if command != "up" && command != "down" && command != "status" {
		log.Fatal("Command must be 'up', 'down' or 'status'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		err = database.Migrate(ctx, db)
	case "down":
		err = database.Rollback(ctx, db)
	}
	if err != nil {
		log.Fatalf("Migrate %s: %v", command, err)
	}

	version, err := database.Version(ctx, db)
	if err != nil {
		log.Fatalf("Read version: %v", err)
	}
	log.Printf("Database at migration version %d", version)
}
