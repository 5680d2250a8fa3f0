package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimerName      = "New timer"
	DefaultTimerGroupName = "New slot"
	DefaultTimeLoggerName = "first time logger"
)

// TimeLogger is one workspace of timer groups owned by a user.
type TimeLogger struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	IsEditMode  bool         `json:"isEditMode"`
	TimerGroups []TimerGroup `json:"timerGroups,omitempty"`
	CreatedAt   *time.Time   `json:"createdAt"`
}

// TimerGroup is a named set of timers; at most one of them runs at a time.
type TimerGroup struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Timers    []Timer    `json:"timers"`
	CreatedAt *time.Time `json:"createdAt"`
}

// Timer is a stopwatch. ElapsedSec holds the seconds banked by earlier runs;
// the live value is derived from StartTime at read time and never stored.
type Timer struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	StartTime  *time.Time `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	IsRunning  bool       `json:"isRunning"`
	ElapsedSec int64      `json:"elapsedSec"`
	CreatedAt  *time.Time `json:"createdAt"`
}

// DefaultTimer returns a stopped, zeroed timer with a fresh id.
func DefaultTimer(now time.Time) Timer {
	createdAt := now
	return Timer{
		ID:         uuid.NewString(),
		Name:       DefaultTimerName,
		StartTime:  nil,
		EndTime:    nil,
		IsRunning:  false,
		ElapsedSec: 0,
		CreatedAt:  &createdAt,
	}
}

// DefaultTimerGroup returns a new group seeded with one default timer.
func DefaultTimerGroup(now time.Time) TimerGroup {
	createdAt := now
	return TimerGroup{
		ID:        uuid.NewString(),
		Name:      DefaultTimerGroupName,
		Timers:    []Timer{DefaultTimer(now)},
		CreatedAt: &createdAt,
	}
}

// ElapsedSecAt returns the seconds the timer shows at now. It matches what
// a stop at now would bank.
func (t Timer) ElapsedSecAt(now time.Time) int64 {
	if t.IsRunning && t.StartTime != nil {
		return t.ElapsedSec + RunSec(*t.StartTime, now)
	}
	return t.ElapsedSec
}

// ElapsedSecAt sums the live elapsed seconds of every timer in the group.
func (g TimerGroup) ElapsedSecAt(now time.Time) int64 {
	var total int64
	for _, t := range g.Timers {
		total += t.ElapsedSecAt(now)
	}
	return total
}

// RunSec is the length of a run in whole seconds. A start marker ahead of
// now, written by a device whose clock runs fast, counts as zero.
func RunSec(start, now time.Time) int64 {
	return max(CalculateElapsedSec(start, now), 0)
}

// CalculateElapsedSec returns floor((end - start) / 1s).
func CalculateElapsedSec(start, end time.Time) int64 {
	d := end.Sub(start)
	sec := int64(d / time.Second)
	if d%time.Second < 0 {
		sec--
	}
	return sec
}
