// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"database/sql"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/config"
	"timelogger/backend/internal/store"
	"timelogger/backend/internal/store/firebasestore"
	"timelogger/backend/internal/store/redisstore"
	"timelogger/backend/internal/store/sqlitestore"
)

// FirebaseApp returns nil when Firebase is not configured.
func FirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return firebasestore.NewApp(ctx, cfg.CredentialsFile, cfg.DatabaseURL)
}

// Open returns the store named by cfg.StoreBackend. database is used by the
// sqlite backend and app by the firebase backend.
func Open(ctx context.Context, cfg config.Config, database *sql.DB, app *firebase.App, logger zerolog.Logger) (store.Store, error) {
	logger = logger.With().Str("component", "store").Str("backend", cfg.StoreBackend).Logger()

	switch cfg.StoreBackend {
	case config.StoreSQLite:
		if database == nil {
			return nil, fmt.Errorf("sqlite store needs a database")
		}
		return sqlitestore.New(database, logger), nil
	case config.StoreRedis:
		s, err := redisstore.Open(redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreFirebase:
		if app == nil || cfg.Firebase.DatabaseURL == "" {
			return nil, fmt.Errorf("firebase store needs FIREBASE_DATABASE_URL")
		}
		s, err := firebasestore.Open(ctx, app, cfg.Firebase.PollInterval, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
