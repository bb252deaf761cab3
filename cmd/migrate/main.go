package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	config "github.com/aimploy/payments/api/config"
	"github.com/aimploy/payments/api/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal("failed to load config", err)
	}
	if err := database.Initialize(context.Background(), cfg.DatabaseURL, 1); err != nil {
		fatal("failed to connect to database", err)
	}

	m, err := database.NewMigrator(database.GetDB())
	if err != nil {
		fatal("failed to initialize migrator", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			slog.Error("failed to close migrator", "source_err", sourceErr, "db_err", dbErr)
		}
	}()

	switch command {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			slog.Info("no change: schema is up to date")
		case err != nil:
			fatal("failed to apply migrations", err)
		default:
			slog.Info("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			fatal("failed to roll back last migration", err)
		}
		slog.Info("rolled back last migration")

	case "goto":
		if len(os.Args) < 3 {
			fatal("goto needs a version", errors.New("missing argument"))
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			fatal("invalid version", err)
		}
		err = m.Migrate(uint(version))
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			slog.Info("no change", "version", version)
		case err != nil:
			fatal(fmt.Sprintf("failed to migrate to version %d", version), err)
		default:
			slog.Info("migrated", "version", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			slog.Info("no migrations applied yet")
		case err != nil:
			fatal("failed to read migration version", err)
		default:
			slog.Info("current migration version", "version", version, "dirty", dirty)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
