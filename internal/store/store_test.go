package store

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPathBuilders(t *testing.T) {
	path, err := TimerPath("u1", "l1", "g1", "t1")
	if err != nil {
		t.Fatalf("TimerPath: %v", err)
	}
	if path != "timeLoggers/u1/l1/timerGroups/g1/timers/t1" {
		t.Fatalf("unexpected timer path: %s", path)
	}

	path, err = EditModePath("u1", "l1")
	if err != nil || path != "timeLoggers/u1/l1/isEditMode" {
		t.Fatalf("unexpected edit mode path %q: %v", path, err)
	}

	path, err = UserDetailsPath("u1")
	if err != nil || path != "userDetails/u1" {
		t.Fatalf("unexpected user details path %q: %v", path, err)
	}

	for _, bad := range []string{"", "a/b", "a.b", "a#b", "a$b", "a[b", "a]b"} {
		if _, err := TimerGroupPath("u1", "l1", bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("expected ErrInvalidPath for segment %q, got %v", bad, err)
		}
	}
}

func TestOverlapsAndAncestors(t *testing.T) {
	if !Overlaps("a/b", "a/b/c") || !Overlaps("a/b/c", "a/b") || !Overlaps("a", "a") {
		t.Fatal("expected overlapping paths")
	}
	if Overlaps("a/b", "a/bc") || Overlaps("a/b", "a/c") {
		t.Fatal("sibling paths must not overlap")
	}

	got := Ancestors("a/b/c")
	if !reflect.DeepEqual(got, []string{"a/b", "a"}) {
		t.Fatalf("unexpected ancestors: %v", got)
	}
	if len(Ancestors("a")) != 0 {
		t.Fatal("root segment has no ancestors")
	}
}

func TestFlattenAndExpand(t *testing.T) {
	leaves, err := Flatten("root", map[string]any{
		"name":  "x",
		"count": 3,
		"gone":  nil,
		"empty": map[string]any{},
		"list":  []string{"a", "b"},
		"child": map[string]any{"flag": true},
	})
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	want := Leaves{
		"root/name":       json.RawMessage(`"x"`),
		"root/count":      json.RawMessage(`3`),
		"root/list":       json.RawMessage(`["a","b"]`),
		"root/child/flag": json.RawMessage(`true`),
	}
	if len(leaves) != len(want) {
		t.Fatalf("unexpected leaves: %v", leaves)
	}
	for path, raw := range want {
		if string(leaves[path]) != string(raw) {
			t.Fatalf("leaf %s: expected %s, got %s", path, raw, leaves[path])
		}
	}

	raw, err := Expand("root", leaves)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if string(raw) != `{"child":{"flag":true},"count":3,"list":["a","b"],"name":"x"}` {
		t.Fatalf("unexpected expansion: %s", raw)
	}

	raw, err = Expand("root/child/flag", leaves)
	if err != nil || string(raw) != "true" {
		t.Fatalf("expected leaf value, got %s (%v)", raw, err)
	}

	raw, err = Expand("missing", leaves)
	if err != nil || raw != nil {
		t.Fatalf("expected nil for missing path, got %s (%v)", raw, err)
	}

	if _, err := Flatten("root", map[string]any{"bad.key": 1}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for reserved key, got %v", err)
	}
}

func TestPatchApplyKeepsSiblings(t *testing.T) {
	leaves := Leaves{
		"l/name":                  json.RawMessage(`"old"`),
		"l/timerGroups/g1/name":   json.RawMessage(`"slot"`),
		"l/timerGroups/g1/timers": json.RawMessage(`"scalar"`),
	}

	patch, err := PlanUpdate("l", map[string]any{"name": "new", "id": "l"})
	if err != nil {
		t.Fatalf("PlanUpdate: %v", err)
	}
	patch.Apply(leaves)
	if string(leaves["l/name"]) != `"new"` || string(leaves["l/id"]) != `"l"` {
		t.Fatalf("patch not applied: %v", leaves)
	}
	if _, ok := leaves["l/timerGroups/g1/name"]; !ok {
		t.Fatal("update must not touch unnamed children")
	}

	patch, err = PlanUpdate("l/timerGroups/g1/timers/t1", map[string]any{"isRunning": true})
	if err != nil {
		t.Fatalf("PlanUpdate nested: %v", err)
	}
	patch.Apply(leaves)
	if _, ok := leaves["l/timerGroups/g1/timers"]; ok {
		t.Fatal("ancestor leaf must be dropped when writing below it")
	}

	patch, err = PlanUpdate("l", map[string]any{"name": nil})
	if err != nil {
		t.Fatalf("PlanUpdate delete child: %v", err)
	}
	patch.Apply(leaves)
	if _, ok := leaves["l/name"]; ok {
		t.Fatal("nil value must remove the child")
	}

	patch, err = PlanDelete("l/timerGroups/g1")
	if err != nil {
		t.Fatalf("PlanDelete: %v", err)
	}
	patch.Apply(leaves)
	for path := range leaves {
		if IsWithin(path, "l/timerGroups/g1") {
			t.Fatalf("leaf %s survived delete", path)
		}
	}
}

func TestWatchDedupesAndCloses(t *testing.T) {
	var mu sync.Mutex
	value := json.RawMessage(`1`)
	read := func(context.Context) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		return value, nil
	}

	broker := NewBroker()
	notify, release := broker.Listen("a/b")
	sub := Watch(context.Background(), "a/b", read, notify, release, zerolog.Nop())

	if got := receive(t, sub.C); string(got) != "1" {
		t.Fatalf("expected initial 1, got %s", got)
	}

	broker.Publish("a/b/c")
	mu.Lock()
	value = json.RawMessage(`2`)
	mu.Unlock()
	broker.Publish("a")
	if got := receive(t, sub.C); string(got) != "2" {
		t.Fatalf("expected 2, got %s", got)
	}

	broker.Publish("a/b")
	select {
	case raw := <-sub.C:
		t.Fatalf("identical snapshot must not be emitted again, got %s", raw)
	case <-time.After(50 * time.Millisecond):
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("expected channel closed after Close")
	}
	if broker.Len() != 0 {
		t.Fatalf("listener not released, %d left", broker.Len())
	}
}

func TestBrokerIgnoresUnrelatedPaths(t *testing.T) {
	broker := NewBroker()
	notify, release := broker.Listen("a/b")
	defer release()

	broker.Publish("a/c")
	select {
	case <-notify:
		t.Fatal("unrelated change must not notify")
	default:
	}
}

func TestFeedDecodesAndStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	read := func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{"n":7}`), nil
	}
	sub := Watch(ctx, "x", read, nil, nil, zerolog.Nop())
	feed := NewFeed(sub, func(raw json.RawMessage) int {
		var v struct{ N int }
		_ = json.Unmarshal(raw, &v)
		return v.N
	})

	if got := receive(t, feed.C); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}

	cancel()
	select {
	case <-feed.Done():
	case <-time.After(time.Second):
		t.Fatal("feed did not stop after context cancel")
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
