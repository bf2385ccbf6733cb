package main

import (
	"context"
	"log"

	"gomotif/adapters/db/postgres"
	"gomotif/internal/config"
	"gomotif/internal/errors"
	"gomotif/internal/migration"
	"gomotif/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase opens the PostgreSQL connection and applies migrations. The
// console is read-only but still migrates so it boots cleanly on a fresh
// database.
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	if appConfig.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(context.Background(), db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initDatabase(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	consoleApp, err := ui.NewApp(
		ui.Config{Port: appConfig.Console.Port},
		postgres.NewRunRepository(db),
		postgres.NewSweepRepository(db),
		postgres.NewLedgerRepository(db),
	)
	if err != nil {
		log.Fatalf("Failed to initialize console: %v", err)
	}

	log.Fatal(consoleApp.Start())
}
