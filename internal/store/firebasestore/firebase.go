package firebasestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"timelogger/backend/internal/store"
)

const DefaultPollInterval = time.Second

// Database is the part of the Realtime Database client the store needs.
type Database interface {
	Get(ctx context.Context, path string, v interface{}) error
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	Delete(ctx context.Context, path string) error
}

// NewApp initializes a Firebase app from a service account file. An empty
// credentials file falls back to application default credentials.
func NewApp(ctx context.Context, credentialsFile, databaseURL string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var cfg *firebase.Config
	if databaseURL != "" {
		cfg = &firebase.Config{DatabaseURL: databaseURL}
	}

	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}

type realtimeDatabase struct {
	client *db.Client
}

func (r realtimeDatabase) Get(ctx context.Context, path string, v interface{}) error {
	return r.client.NewRef(path).Get(ctx, v)
}

func (r realtimeDatabase) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return r.client.NewRef(path).Update(ctx, fields)
}

func (r realtimeDatabase) Delete(ctx context.Context, path string) error {
	return r.client.NewRef(path).Delete(ctx)
}

// Store talks to the Firebase Realtime Database over REST. The REST client has
// no streaming listener, so subscriptions poll and emit only when the value
// changes.
type Store struct {
	database     Database
	pollInterval time.Duration
	logger       zerolog.Logger
}

// Open returns a store backed by the app's default database.
func Open(ctx context.Context, app *firebase.App, pollInterval time.Duration, logger zerolog.Logger) (*Store, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}
	return New(realtimeDatabase{client: client}, pollInterval, logger), nil
}

func New(database Database, pollInterval time.Duration, logger zerolog.Logger) *Store {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Store{
		database:     database,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "firebasestore").Logger(),
	}
}

func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.database.Get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	// Validates keys the same way the other backends do.
	if _, err := store.PlanUpdate(path, fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.database.Update(ctx, path, fields); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	if err := s.database.Delete(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (*store.Subscription, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	pollCtx, stop := context.WithCancel(ctx)
	notify := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				select {
				case notify <- struct{}{}:
				default:
				}
			}
		}
	}()

	read := func(ctx context.Context) (json.RawMessage, error) {
		return s.Get(ctx, path)
	}
	return store.Watch(ctx, path, read, notify, stop, s.logger), nil
}

// Close is a no-op; the Firebase app owns the HTTP client.
func (s *Store) Close() error {
	return nil
}
