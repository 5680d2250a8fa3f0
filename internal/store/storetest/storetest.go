// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"timelogger/backend/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("UpdateMergesChildren", func(t *testing.T) { testUpdateMerges(t, newStore(t)) })
	t.Run("NilDeletesChild", func(t *testing.T) { testNilDeletes(t, newStore(t)) })
	t.Run("DeleteRemovesSubtree", func(t *testing.T) { testDeleteSubtree(t, newStore(t)) })
	t.Run("InvalidPath", func(t *testing.T) { testInvalidPath(t, newStore(t)) })
	t.Run("SubscribeFollowsChanges", func(t *testing.T) { testSubscribe(t, newStore(t)) })
}

func testGetMissing(t *testing.T, s store.Store) {
	raw, err := s.Get(context.Background(), "timeLoggers/u1/l1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil for missing node, got %s", raw)
	}
}

func testUpdateMerges(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustUpdate(t, s, "timeLoggers/u1/l1/timerGroups/g1", map[string]any{"id": "g1", "name": "slot"})
	mustUpdate(t, s, "timeLoggers/u1/l1", map[string]any{"id": "l1", "name": "first"})
	mustUpdate(t, s, "timeLoggers/u1/l1", map[string]any{"name": "renamed"})

	var logger struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		TimerGroups map[string]struct {
			Name string `json:"name"`
		} `json:"timerGroups"`
	}
	mustGet(t, s, "timeLoggers/u1/l1", &logger)
	if logger.ID != "l1" || logger.Name != "renamed" {
		t.Fatalf("unexpected logger: %+v", logger)
	}
	if logger.TimerGroups["g1"].Name != "slot" {
		t.Fatalf("update must keep sibling children: %+v", logger)
	}

	raw, err := s.Get(ctx, "timeLoggers/u1/l1/name")
	if err != nil || string(raw) != `"renamed"` {
		t.Fatalf("expected leaf value, got %s (%v)", raw, err)
	}
}

func testNilDeletes(t *testing.T, s store.Store) {
	mustUpdate(t, s, "a/b", map[string]any{"keep": 1, "drop": "x"})
	mustUpdate(t, s, "a/b", map[string]any{"drop": nil})

	var got map[string]any
	mustGet(t, s, "a/b", &got)
	if _, ok := got["drop"]; ok {
		t.Fatalf("nil value must remove child: %v", got)
	}
	if got["keep"] != float64(1) {
		t.Fatalf("expected keep=1, got %v", got)
	}
}

func testDeleteSubtree(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustUpdate(t, s, "g/g1/timers/t1", map[string]any{"name": "a"})
	mustUpdate(t, s, "g/g1", map[string]any{"name": "slot"})
	mustUpdate(t, s, "g/g10", map[string]any{"name": "other"})

	if err := s.Delete(ctx, "g/g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	raw, err := s.Get(ctx, "g/g1/timers/t1")
	if err != nil || raw != nil {
		t.Fatalf("nested nodes must vanish with their parent, got %s (%v)", raw, err)
	}
	raw, err = s.Get(ctx, "g/g10")
	if err != nil || raw == nil {
		t.Fatalf("delete must not touch a sibling sharing a prefix, got %s (%v)", raw, err)
	}
}

func testInvalidPath(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Get(ctx, "a/../b"); !errors.Is(err, store.ErrInvalidPath) {
		t.Fatalf("Get: expected ErrInvalidPath, got %v", err)
	}
	if err := s.Update(ctx, "a", map[string]any{"x#y": 1}); !errors.Is(err, store.ErrInvalidPath) {
		t.Fatalf("Update: expected ErrInvalidPath, got %v", err)
	}
	if err := s.Delete(ctx, ""); !errors.Is(err, store.ErrInvalidPath) {
		t.Fatalf("Delete: expected ErrInvalidPath, got %v", err)
	}
}

func testSubscribe(t *testing.T, s store.Store) {
	ctx := context.Background()
	sub, err := s.Subscribe(ctx, "timeLoggers/u1/l1/isEditMode")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if raw := Next(t, sub.C); raw != nil {
		t.Fatalf("expected nil initial snapshot, got %s", raw)
	}

	mustUpdate(t, s, "timeLoggers/u1/l1", map[string]any{"isEditMode": true})
	if raw := Next(t, sub.C); string(raw) != "true" {
		t.Fatalf("expected true, got %s", raw)
	}

	mustUpdate(t, s, "timeLoggers/u1/l1", map[string]any{"name": "unrelated"})
	mustUpdate(t, s, "timeLoggers/u1/l1", map[string]any{"isEditMode": false})
	if raw := Next(t, sub.C); string(raw) != "false" {
		t.Fatalf("expected false, got %s", raw)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("expected closed channel after Close")
	}
}

// Next waits for the next snapshot on a subscription channel.
func Next(t *testing.T, ch <-chan json.RawMessage) json.RawMessage {
	t.Helper()
	select {
	case raw, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return raw
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func mustUpdate(t *testing.T, s store.Store, path string, fields map[string]any) {
	t.Helper()
	if err := s.Update(context.Background(), path, fields); err != nil {
		t.Fatalf("Update %s: %v", path, err)
	}
}

func mustGet(t *testing.T, s store.Store, path string, v any) {
	t.Helper()
	raw, err := s.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get %s: %v", path, err)
	}
	if raw == nil {
		t.Fatalf("Get %s: no value", path)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}
