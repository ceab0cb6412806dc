package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"queue-kiosk/internal/database/migrations"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Standalone migration tool: applies or rolls back the schema without
// starting the service.
//
//	go run ./cmd/migrate            # apply everything including seed data
//	go run ./cmd/migrate -seed=false # schema only
//	go run ./cmd/migrate -down      # roll everything back
func main() {
	down := flag.Bool("down", false, "roll back all migrations")
	seed := flag.Bool("seed", true, "include seed data (business types, counters, settings)")
	flag.Parse()

	_ = godotenv.Load()

	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "queue.db"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?_pragma=foreign_keys(1)", path))
	if err != nil {
		log.Fatalf("failed to open database %s: %v", path, err)
	}
	defer sqldb.Close()

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		AutoMigrate: true,
		SeedData:    *seed,
	})

	if *down {
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("✅ All migrations rolled back")
		return
	}

	if err := runner.RunMigrations(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Printf("✅ Migrations applied to %s", path)
}
