package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"timelogger/backend/internal/store"
)

// Store keeps the tree as one row per leaf in the nodes table. Change
// notifications only reach subscribers in the same process.
type Store struct {
	db     *sql.DB
	broker *store.Broker
	logger zerolog.Logger
}

func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		broker: store.NewBroker(),
		logger: logger.With().Str("component", "sqlitestore").Logger(),
	}
}

func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	leaves, err := s.readLeaves(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.Expand(path, leaves)
}

func (s *Store) readLeaves(ctx context.Context, path string) (store.Leaves, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT path, value FROM nodes
		 WHERE path = ? OR (path >= ? AND path < ?)`,
		path,
		path+"/",
		store.PrefixUpperBound(path),
	)
	if err != nil {
		return nil, fmt.Errorf("query nodes %s: %w", path, err)
	}
	defer rows.Close()

	leaves := store.Leaves{}
	for rows.Next() {
		var leafPath, value string
		if err := rows.Scan(&leafPath, &value); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		leaves[leafPath] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes %s: %w", path, err)
	}
	return leaves, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	patch, err := store.PlanUpdate(path, fields)
	if err != nil {
		return err
	}
	return s.apply(ctx, patch)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	patch, err := store.PlanDelete(path)
	if err != nil {
		return err
	}
	return s.apply(ctx, patch)
}

func (s *Store) apply(ctx context.Context, patch *store.Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, root := range patch.Clear {
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM nodes WHERE path = ? OR (path >= ? AND path < ?)`,
			root,
			root+"/",
			store.PrefixUpperBound(root),
		); err != nil {
			return fmt.Errorf("clear %s: %w", root, err)
		}
	}
	for _, ancestor := range patch.Ancestors {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE path = ?`, ancestor); err != nil {
			return fmt.Errorf("clear ancestor %s: %w", ancestor, err)
		}
	}
	for leafPath, raw := range patch.Set {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO nodes (path, value) VALUES (?, ?)
			 ON CONFLICT(path) DO UPDATE SET value = excluded.value`,
			leafPath,
			string(raw),
		); err != nil {
			return fmt.Errorf("write %s: %w", leafPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit patch: %w", err)
	}

	for _, root := range patch.Clear {
		s.broker.Publish(root)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (*store.Subscription, error) {
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	notify, release := s.broker.Listen(path)
	read := func(ctx context.Context) (json.RawMessage, error) {
		return s.Get(ctx, path)
	}
	return store.Watch(ctx, path, read, notify, release, s.logger), nil
}

// Close leaves the database open; it belongs to the caller.
func (s *Store) Close() error {
	return nil
}
