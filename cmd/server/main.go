package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"trackx/backend/internal/config"
	"trackx/backend/internal/dashboard"
	"trackx/backend/internal/db"
	"trackx/backend/internal/docstore"
	"trackx/backend/internal/engine"
	"trackx/backend/internal/handler"
	"trackx/backend/internal/logger"
	"trackx/backend/internal/repository"
	"trackx/backend/internal/retry"
	"trackx/backend/internal/router"
	"trackx/backend/internal/service"
	"trackx/backend/internal/session"
)

const shutdownTimeout = 10 * time.Second

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"YAML config file." type:"path" env:"TRACKX_CONFIG"`
	Port     string `help:"Listen port, overrides the config file."`
	LogLevel string `help:"Log level (debug, info, warn, error)."`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("trackx-server"),
		kong.Description("TrackX productivity dashboard backend"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
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
	cfg, err = cfg.Override(config.Config{Port: CLI.Port, LogLevel: CLI.LogLevel})
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

	loc := cfg.Location()
	userRepo := repository.NewUserRepository(database, dialect)
	store := docstore.NewClient(repository.NewDocumentRepository(database, dialect), log)
	sessions := session.NewHub()
	retrier := retry.New(log, cfg.RetryMaxElapsed)
	policy := engine.StreakPolicy{ResetOnGap: cfg.StreakGapPolicy == config.StreakGapReset}

	if purged, err := userRepo.PurgeExpiredTokens(context.Background(), time.Now().UTC()); err != nil {
		log.Warn("purge revoked tokens", "error", err)
	} else if purged > 0 {
		log.Info("purged revoked tokens", "count", purged)
	}

	authService := service.NewAuthService(userRepo, sessions, cfg.JWTSecret, cfg.TokenTTL, log)
	live := dashboard.New(store, loc, log)

	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Habits:  handler.NewHabitHandler(service.NewHabitService(store, retrier, policy, loc, log)),
		Todos:   handler.NewTodoHandler(service.NewTodoService(store, retrier, log)),
		Notes:   handler.NewNoteHandler(service.NewNoteService(store, log)),
		Events:  handler.NewEventHandler(service.NewEventService(store, loc, log)),
		Focus:   handler.NewFocusHandler(service.NewFocusService(store, retrier, log)),
		Profile: handler.NewProfileHandler(service.NewProfileService(userRepo, store, sessions, log)),
		Stats:   handler.NewStatsHandler(service.NewStatsService(store, authService, live, loc, log)),
	}
	app := router.New(authService, handlers, cfg.CORSOrigins, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Info("backend listening", "port", cfg.Port, "driver", cfg.DBDriver, "streakGapPolicy", cfg.StreakGapPolicy)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
