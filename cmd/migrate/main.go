package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"timelogger/backend/internal/config"
	"timelogger/backend/internal/db"
	"timelogger/backend/internal/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "list pending migrations without applying them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	if *dryRun {
		pending, err := db.PendingMigrations(ctx, database, cfg.MigrationsDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to list migrations")
		}
		for _, name := range pending {
			fmt.Println(name)
		}
		return
	}

	applied, err := db.RunMigrations(ctx, database, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Strs("applied", applied).Msg("Failed to run migrations")
	}

	logger.Info().Str("path", cfg.DBPath).Strs("applied", applied).Msg("Migrations applied")
}
