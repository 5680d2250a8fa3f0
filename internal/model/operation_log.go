package model

import (
	"time"

	"github.com/rs/zerolog"
)

type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationStart  OperationType = "start"
	OperationStop   OperationType = "stop"
	OperationDelete OperationType = "delete"
	OperationRename OperationType = "rename"
	OperationMove   OperationType = "move"
	OperationOther  OperationType = "other"
)

// OperationLog describes one write against a time logger.
type OperationLog struct {
	ID              string        `json:"id"`
	UserID          string        `json:"userId"`
	LoggerID        string        `json:"loggerId"`
	TimerGroupID    string        `json:"timerGroupId,omitempty"`
	TimerID         string        `json:"timerId,omitempty"`
	OperationType   OperationType `json:"operationType"`
	OperationDetail string        `json:"operationDetail"`
	Timestamp       time.Time     `json:"timestamp"`
}

// MarshalZerologObject lets an OperationLog be attached to a log event with
// Object or EmbedObject.
func (l OperationLog) MarshalZerologObject(e *zerolog.Event) {
	e.Str("op_id", l.ID).
		Str("user_id", l.UserID).
		Str("logger_id", l.LoggerID).
		Str("operation_type", string(l.OperationType)).
		Str("operation_detail", l.OperationDetail).
		Time("timestamp", l.Timestamp)
	if l.TimerGroupID != "" {
		e.Str("timer_group_id", l.TimerGroupID)
	}
	if l.TimerID != "" {
		e.Str("timer_id", l.TimerID)
	}
}
