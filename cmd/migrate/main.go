package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tbdash/adapters/excel"
	"tbdash/adapters/postgres"
	"tbdash/domain/feature"
	"tbdash/internal/config"
	"tbdash/internal/migration"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [dataset_file] [table]")
	}

	databaseURL := os.Args[1]
	table := config.DefaultDataTable
	if len(os.Args) > 3 {
		table = os.Args[3]
	}

	ctx := context.Background()
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	catalog := feature.DefaultCatalog()
	migrator := migration.NewRunner(table, catalog.IDs())
	if err := migrator.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema %s ready for table %s", migrator.Version(), table)

	if len(os.Args) < 3 {
		return
	}

	start := time.Now()
	cfg := excel.DefaultReaderConfig()
	cfg.FilePath = os.Args[2]
	cfg.Required = catalog.IDs()
	data, err := excel.NewDataReader(cfg).Load(ctx)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", cfg.FilePath, err)
	}

	n, err := postgres.NewDatasetRepository(db, table, catalog.IDs()).Import(ctx, data)
	if err != nil {
		log.Fatalf("Import failed after %d rows: %v", n, err)
	}
	log.Printf("Imported %d rows from %s in %s", n, cfg.FilePath, time.Since(start))
}
