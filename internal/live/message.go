package live

import (
	"encoding/json"
	"time"

	"timelogger/backend/internal/model"
)

// Client to server message types.
const (
	TypeSubscribe        = "subscribe"
	TypeUnsubscribe      = "unsubscribe"
	TypeStart            = "start"
	TypeStop             = "stop"
	TypeReset            = "reset"
	TypeSetEditMode      = "setEditMode"
	TypeAddTimerGroup    = "addTimerGroup"
	TypeAddTimer         = "addTimer"
	TypeRenameTimerGroup = "renameTimerGroup"
	TypeRenameTimer      = "renameTimer"
	TypeDeleteTimerGroup = "deleteTimerGroup"
	TypeDeleteTimer      = "deleteTimer"
)

// Server to client message types.
const (
	TypeSnapshot = "snapshot"
	TypeNavigate = "navigate"
	TypeError    = "error"
)

// Subscription kinds.
const (
	KindTimerGroups = "timerGroups"
	KindTimerGroup  = "timerGroup"
	KindTimers      = "timers"
	KindEditMode    = "editMode"
	KindProfile     = "profile"
)

type ClientMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	LoggerID string `json:"loggerId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
	TimerID  string `json:"timerId,omitempty"`
	Name     string `json:"name,omitempty"`
	Value    bool   `json:"value,omitempty"`
}

type ServerMessage struct {
	Type     string `json:"type"`
	Sub      string `json:"sub,omitempty"`
	Data     any    `json:"data,omitempty"`
	LoggerID string `json:"loggerId,omitempty"`
	Message  string `json:"message,omitempty"`
}

// TimerView is a timer plus the seconds it shows at the time of sending.
type TimerView struct {
	model.Timer
	ElapsedSecNow int64 `json:"elapsedSecNow"`
}

type TimerGroupView struct {
	model.TimerGroup
	Timers        []TimerView `json:"timers"`
	ElapsedSecNow int64       `json:"elapsedSecNow"`
}

func NewTimerViews(timers []model.Timer, now time.Time) []TimerView {
	if timers == nil {
		return nil
	}
	views := make([]TimerView, 0, len(timers))
	for _, t := range timers {
		views = append(views, TimerView{Timer: t, ElapsedSecNow: t.ElapsedSecAt(now)})
	}
	return views
}

func NewTimerGroupView(group model.TimerGroup, now time.Time) TimerGroupView {
	timers := NewTimerViews(group.Timers, now)
	if timers == nil {
		timers = []TimerView{}
	}
	return TimerGroupView{
		TimerGroup:    group,
		Timers:        timers,
		ElapsedSecNow: group.ElapsedSecAt(now),
	}
}

func NewTimerGroupViews(groups []model.TimerGroup, now time.Time) []TimerGroupView {
	if groups == nil {
		return nil
	}
	views := make([]TimerGroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, NewTimerGroupView(g, now))
	}
	return views
}

func encode(msg ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}
