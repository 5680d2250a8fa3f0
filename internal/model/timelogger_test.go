package model

import (
	"testing"
	"time"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestCalculateElapsedSec(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int64
	}{
		{"same instant", base, base, 0},
		{"whole seconds", base, base.Add(90 * time.Second), 90},
		{"fraction floors down", base, base.Add(1999 * time.Millisecond), 1},
		{"under one second", base, base.Add(999 * time.Millisecond), 0},
		{"negative whole", base, base.Add(-2 * time.Second), -2},
		{"negative fraction floors away from zero", base, base.Add(-500 * time.Millisecond), -1},
	}
	for _, tc := range cases {
		if got := CalculateElapsedSec(tc.start, tc.end); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestTimerElapsedSecAt(t *testing.T) {
	start := base
	running := Timer{IsRunning: true, StartTime: &start, ElapsedSec: 10}
	if got := running.ElapsedSecAt(base.Add(5 * time.Second)); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
	if got := running.ElapsedSecAt(base.Add(65*time.Second + 400*time.Millisecond)); got != 75 {
		t.Fatalf("expected 75, got %d", got)
	}

	stopped := Timer{IsRunning: false, StartTime: &start, ElapsedSec: 42}
	if got := stopped.ElapsedSecAt(base.Add(time.Hour)); got != 42 {
		t.Fatalf("stopped timer must report banked seconds, got %d", got)
	}

	noStart := Timer{IsRunning: true, ElapsedSec: 7}
	if got := noStart.ElapsedSecAt(base.Add(time.Hour)); got != 7 {
		t.Fatalf("running timer without start must report banked seconds, got %d", got)
	}
}

func TestTimerElapsedSecAtIgnoresFutureStart(t *testing.T) {
	future := base.Add(30 * time.Second)
	timer := Timer{IsRunning: true, StartTime: &future, ElapsedSec: 12}
	if got := timer.ElapsedSecAt(base); got != 12 {
		t.Fatalf("a start ahead of now must add nothing, got %d", got)
	}
	if got := RunSec(future, base); got != 0 {
		t.Fatalf("expected RunSec to clamp to 0, got %d", got)
	}
	if got := RunSec(base, future); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

func TestTimerElapsedSecIsNotMemoized(t *testing.T) {
	start := base
	timer := Timer{IsRunning: true, StartTime: &start}
	first := timer.ElapsedSecAt(base.Add(3 * time.Second))
	second := timer.ElapsedSecAt(base.Add(8 * time.Second))
	if first != 3 || second != 8 {
		t.Fatalf("expected 3 then 8, got %d then %d", first, second)
	}
	if timer.ElapsedSec != 0 {
		t.Fatalf("reading must not bank seconds, got %d", timer.ElapsedSec)
	}
}

func TestTimerGroupElapsedSecAt(t *testing.T) {
	start := base
	group := TimerGroup{Timers: []Timer{
		{ElapsedSec: 30},
		{IsRunning: true, StartTime: &start, ElapsedSec: 5},
		{ElapsedSec: 0},
	}}
	if got := group.ElapsedSecAt(base.Add(10 * time.Second)); got != 45 {
		t.Fatalf("expected 45, got %d", got)
	}
	if got := (TimerGroup{}).ElapsedSecAt(base); got != 0 {
		t.Fatalf("empty group should sum to 0, got %d", got)
	}
}

func TestDefaultTimerGroup(t *testing.T) {
	group := DefaultTimerGroup(base)
	if group.ID == "" || group.Name != DefaultTimerGroupName {
		t.Fatalf("unexpected group: %+v", group)
	}
	if group.CreatedAt == nil || !group.CreatedAt.Equal(base) {
		t.Fatalf("expected createdAt %v, got %v", base, group.CreatedAt)
	}
	if len(group.Timers) != 1 {
		t.Fatalf("expected one seeded timer, got %d", len(group.Timers))
	}

	timer := group.Timers[0]
	if timer.ID == "" || timer.ID == group.ID {
		t.Fatalf("seeded timer needs its own id: %+v", timer)
	}
	if timer.Name != DefaultTimerName || timer.IsRunning || timer.ElapsedSec != 0 {
		t.Fatalf("unexpected seeded timer: %+v", timer)
	}
	if timer.StartTime != nil || timer.EndTime != nil {
		t.Fatalf("seeded timer must not carry start/end: %+v", timer)
	}

	other := DefaultTimerGroup(base)
	if other.ID == group.ID || other.Timers[0].ID == timer.ID {
		t.Fatal("default constructors must generate fresh ids")
	}
}

func TestFormatHMS(t *testing.T) {
	cases := map[int64]string{
		0:      "00:00:00",
		59:     "00:00:59",
		61:     "00:01:01",
		3600:   "01:00:00",
		86399:  "23:59:59",
		360000: "100:00:00",
		-5:     "00:00:00",
	}
	for in, want := range cases {
		if got := FormatHMS(in); got != want {
			t.Fatalf("FormatHMS(%d): expected %s, got %s", in, want, got)
		}
	}
}
