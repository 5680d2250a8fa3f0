package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/config"
	"timelogger/backend/internal/db"
	"timelogger/backend/internal/logging"
	"timelogger/backend/internal/service"
	"timelogger/backend/internal/store"
	"timelogger/backend/internal/store/backend"
)

var (
	version  = "dev"
	userID   string
	loggerID string
)

var rootCmd = &cobra.Command{
	Use:   "tlctl",
	Short: "Inspect and drive time loggers in the configured store",
	Long: `tlctl reads the same environment as the server (STORE_BACKEND, DB_PATH,
REDIS_*, FIREBASE_*) and operates on one user's time logger directly in
the store.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User id")
	rootCmd.PersistentFlags().StringVarP(&loggerID, "logger", "l", "", "Time logger id")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type env struct {
	store       store.Store
	timeLoggers *service.TimeLoggerService
	clock       clock.Clock
}

// withEnv opens the configured store for the duration of fn.
func withEnv(ctx context.Context, fn func(ctx context.Context, e *env) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, "text")

	app, err := backend.FirebaseApp(ctx, cfg.Firebase)
	if err != nil {
		return err
	}

	var database *sql.DB
	if cfg.StoreBackend == config.StoreSQLite {
		database, err = db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()
		if _, err := db.RunMigrations(ctx, database, cfg.MigrationsDir); err != nil {
			return err
		}
	}

	nodes, err := backend.Open(ctx, cfg, database, app, logger)
	if err != nil {
		return err
	}
	defer nodes.Close()

	clk := clock.Real{}
	return fn(ctx, &env{
		store:       nodes,
		timeLoggers: service.NewTimeLoggerService(nodes, clk, logger),
		clock:       clk,
	})
}
