package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/config"
	"timelogger/backend/internal/db"
	"timelogger/backend/internal/store/redisstore"
	"timelogger/backend/internal/store/sqlitestore"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	s, err := Open(ctx, config.Config{StoreBackend: config.StoreSQLite}, database, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	if _, ok := s.(*sqlitestore.Store); !ok {
		t.Fatalf("expected a sqlite store, got %T", s)
	}

	mr := miniredis.RunT(t)
	s, err = Open(ctx, config.Config{
		StoreBackend: config.StoreRedis,
		Redis:        config.RedisConfig{Addr: mr.Addr(), Prefix: "backend-test"},
	}, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, ok := s.(*redisstore.Store); !ok {
		t.Fatalf("expected a redis store, got %T", s)
	}
}

func TestOpenRejectsMisconfiguration(t *testing.T) {
	ctx := context.Background()
	cases := []config.Config{
		{StoreBackend: config.StoreSQLite},
		{StoreBackend: config.StoreFirebase},
		{StoreBackend: "etcd"},
	}
	for _, cfg := range cases {
		if _, err := Open(ctx, cfg, nil, nil, zerolog.Nop()); err == nil {
			t.Fatalf("expected %q to be rejected", cfg.StoreBackend)
		}
	}
}

func TestFirebaseAppDisabled(t *testing.T) {
	app, err := FirebaseApp(context.Background(), config.FirebaseConfig{})
	if err != nil || app != nil {
		t.Fatalf("expected no app without configuration, got %v (%v)", app, err)
	}
}
