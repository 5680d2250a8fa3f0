package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"timelogger/backend/internal/model"
)

// Timer groups and timers are stored as maps keyed by id. These node types
// mirror that layout; decoding turns the maps into slices ordered by creation.
type timerGroupNode struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	CreatedAt *time.Time             `json:"createdAt"`
	Timers    map[string]model.Timer `json:"timers"`
}

func (n timerGroupNode) toModel(key string) model.TimerGroup {
	group := model.TimerGroup{
		ID:        n.ID,
		Name:      n.Name,
		CreatedAt: n.CreatedAt,
		Timers:    orderTimers(n.Timers),
	}
	if group.ID == "" {
		group.ID = key
	}
	if group.Timers == nil {
		group.Timers = []model.Timer{}
	}
	return group
}

func decodeTimerGroups(raw json.RawMessage) ([]model.TimerGroup, error) {
	if raw == nil {
		return nil, nil
	}
	var nodes map[string]timerGroupNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode timer groups: %w", err)
	}
	if nodes == nil {
		return nil, nil
	}

	groups := make([]model.TimerGroup, 0, len(nodes))
	for _, key := range sortedKeys(nodes) {
		groups = append(groups, nodes[key].toModel(key))
	}
	sortStableByCreatedAt(groups, func(g model.TimerGroup) *time.Time { return g.CreatedAt })
	return groups, nil
}

func decodeTimerGroup(raw json.RawMessage) (*model.TimerGroup, error) {
	if raw == nil {
		return nil, nil
	}
	var node timerGroupNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode timer group: %w", err)
	}
	group := node.toModel("")
	return &group, nil
}

func decodeTimers(raw json.RawMessage) ([]model.Timer, error) {
	if raw == nil {
		return nil, nil
	}
	var nodes map[string]model.Timer
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("decode timers: %w", err)
	}
	return orderTimers(nodes), nil
}

func decodeTimer(raw json.RawMessage) (*model.Timer, error) {
	if raw == nil {
		return nil, nil
	}
	var timer model.Timer
	if err := json.Unmarshal(raw, &timer); err != nil {
		return nil, fmt.Errorf("decode timer: %w", err)
	}
	return &timer, nil
}

func decodeEditMode(raw json.RawMessage) (*bool, error) {
	if raw == nil {
		return nil, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode edit mode: %w", err)
	}
	return &v, nil
}

func decodeUserDetail(raw json.RawMessage) (*model.UserDetail, error) {
	if raw == nil {
		return nil, nil
	}
	var detail model.UserDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, fmt.Errorf("decode user detail: %w", err)
	}
	return &detail, nil
}

func orderTimers(nodes map[string]model.Timer) []model.Timer {
	if nodes == nil {
		return nil
	}
	timers := make([]model.Timer, 0, len(nodes))
	for _, key := range sortedKeys(nodes) {
		timer := nodes[key]
		if timer.ID == "" {
			timer.ID = key
		}
		timers = append(timers, timer)
	}
	sortStableByCreatedAt(timers, func(t model.Timer) *time.Time { return t.CreatedAt })
	return timers
}

// sortedKeys reproduces the store's key order.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// sortStableByCreatedAt orders oldest first. Items with the same timestamp
// keep their key order. A missing timestamp compares equal to every other,
// which is not a strict weak ordering: once timestamps are mixed with missing
// ones the resulting order is undefined (a list like [t3, nil, t1] may come
// back unchanged). Only fully stamped or fully unstamped lists sort reliably.
func sortStableByCreatedAt[T any](items []T, createdAt func(T) *time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := createdAt(items[i]), createdAt(items[j])
		if a == nil || b == nil {
			return false
		}
		return a.Before(*b)
	})
}
