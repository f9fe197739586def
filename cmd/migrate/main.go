package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"trackx/backend/internal/config"
	"trackx/backend/internal/db"
	"trackx/backend/internal/logger"
)

var CLI struct {
	Config        string `help:"YAML config file." type:"path" env:"TRACKX_CONFIG"`
	MigrationsDir string `help:"Directory of .sql migrations; the embedded set is used when empty."`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("trackx-migrate"),
		kong.Description("Apply TrackX database migrations"),
		kong.UsageOnError(),
	)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}
	cfg, err = cfg.Override(config.Config{MigrationsDir: CLI.MigrationsDir})
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	database, dialect, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	migrations, err := db.Migrations(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(database, dialect, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Info("migrations applied successfully", "driver", cfg.DBDriver)
	return nil
}
