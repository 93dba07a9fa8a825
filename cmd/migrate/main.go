package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/yourusername/cat-engine/internal/config"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	source := flag.String("source", "file://migrations", "migrations source URL")
	up := flag.Bool("up", false, "apply all up migrations")
	down := flag.Bool("down", false, "roll back one migration")
	force := flag.Int("force", -1, "force the schema version (clears the dirty flag)")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"), "")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal("Failed to open database", "error", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Database is unreachable", "error", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migrate driver", "error", err)
	}
	m, err := migrate.NewWithDatabaseInstance(*source, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", "error", err)
	}

	switch {
	case *force >= 0:
		if err := m.Force(*force); err != nil {
			log.Fatal("Failed to force version", "version", *force, "error", err)
		}
		log.Info("Schema version forced", "version", *force)
	case *down:
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Failed to roll back", "error", err)
		}
		log.Info("Rolled back one migration")
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Failed to apply migrations", "error", err)
		}
		log.Info("Migrations applied")
	default:
		flag.Usage()
		os.Exit(2)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Warn("Failed to read schema version", "error", err)
		return
	}
	log.Info("Current schema version", "version", version, "dirty", dirty)
}
