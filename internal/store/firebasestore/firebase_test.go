package firebasestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"timelogger/backend/internal/store"
	"timelogger/backend/internal/store/storetest"
)

// fakeDatabase mimics Realtime Database update semantics over an in-memory
// leaf set.
type fakeDatabase struct {
	mu      sync.Mutex
	leaves  store.Leaves
	reads   int
	failGet error
}

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{leaves: store.Leaves{}}
}

func (f *fakeDatabase) Get(_ context.Context, path string, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.failGet != nil {
		return f.failGet
	}
	raw, err := store.Expand(path, f.leaves)
	if err != nil {
		return err
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return json.Unmarshal(raw, v)
}

func (f *fakeDatabase) Update(_ context.Context, path string, fields map[string]interface{}) error {
	patch, err := store.PlanUpdate(path, fields)
	if err != nil {
		return err
	}
	f.mu.Lock()
	patch.Apply(f.leaves)
	f.mu.Unlock()
	return nil
}

func (f *fakeDatabase) Delete(_ context.Context, path string) error {
	patch, err := store.PlanDelete(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	patch.Apply(f.leaves)
	f.mu.Unlock()
	return nil
}

func TestFirebaseStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(newFakeDatabase(), 10*time.Millisecond, zerolog.Nop())
	})
}

func TestFirebaseStoreWrapsReadErrors(t *testing.T) {
	database := newFakeDatabase()
	database.failGet = errors.New("permission denied")
	s := New(database, time.Second, zerolog.Nop())

	_, err := s.Get(context.Background(), "userDetails/u1")
	if !errors.Is(err, database.failGet) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestFirebaseStoreEmptyUpdateSkipsDatabase(t *testing.T) {
	database := newFakeDatabase()
	s := New(database, time.Second, zerolog.Nop())

	if err := s.Update(context.Background(), "a", map[string]any{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(database.leaves) != 0 {
		t.Fatalf("expected no writes, got %v", database.leaves)
	}
}

func TestFirebaseStorePollingStopsOnClose(t *testing.T) {
	database := newFakeDatabase()
	s := New(database, 5*time.Millisecond, zerolog.Nop())

	sub, err := s.Subscribe(context.Background(), "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	storetest.Next(t, sub.C)
	time.Sleep(30 * time.Millisecond)
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	database.mu.Lock()
	reads := database.reads
	database.mu.Unlock()
	time.Sleep(30 * time.Millisecond)

	database.mu.Lock()
	defer database.mu.Unlock()
	if database.reads != reads {
		t.Fatalf("polling continued after Close: %d -> %d reads", reads, database.reads)
	}
}
