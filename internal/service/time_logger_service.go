package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/metrics"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/store"
)

var ErrTimerNotFound = errors.New("timer not found")

// TimeLoggerService reads, writes and watches time loggers in the store.
//
// Writes are independent patches and are never retried. Each one is logged
// and counted; the error is also returned so callers may surface it.
// StartTimer, StopTimer and ResetTimer on the same group are serialized
// within this process only.
type TimeLoggerService struct {
	store      store.Store
	clock      clock.Clock
	logger     zerolog.Logger
	groupLocks *keyedMutex
}

func NewTimeLoggerService(s store.Store, clk clock.Clock, logger zerolog.Logger) *TimeLoggerService {
	return &TimeLoggerService{
		store:      s,
		clock:      clk,
		logger:     logger.With().Str("component", "time_logger").Logger(),
		groupLocks: newKeyedMutex(),
	}
}

type target struct {
	userID   string
	loggerID string
	groupID  string
	timerID  string
}

func (s *TimeLoggerService) InitTimeLogger(ctx context.Context, userID, loggerID, name string, createdAt time.Time) error {
	path, err := store.TimeLoggerPath(userID, loggerID)
	if err != nil {
		return err
	}
	return s.write(ctx, "initTimeLogger", model.OperationCreate, target{userID: userID, loggerID: loggerID}, path, map[string]any{
		"id":        loggerID,
		"name":      name,
		"createdAt": createdAt,
	})
}

func (s *TimeLoggerService) EditMode(ctx context.Context, userID, loggerID string) (*store.Feed[*bool], error) {
	path, err := store.EditModePath(userID, loggerID)
	if err != nil {
		return nil, err
	}
	return subscribe(ctx, s, path, decodeEditMode)
}

func (s *TimeLoggerService) ReadEditMode(ctx context.Context, userID, loggerID string) (*bool, error) {
	path, err := store.EditModePath(userID, loggerID)
	if err != nil {
		return nil, err
	}
	return readOnce(ctx, s, path, decodeEditMode)
}

func (s *TimeLoggerService) UpdateEditMode(ctx context.Context, userID, loggerID string, isEditMode bool) error {
	path, err := store.TimeLoggerPath(userID, loggerID)
	if err != nil {
		return err
	}
	return s.write(ctx, "updateEditMode", model.OperationOther, target{userID: userID, loggerID: loggerID}, path, map[string]any{
		"isEditMode": isEditMode,
	})
}

// TimerGroups streams the logger's groups oldest first, each with its timers
// ordered the same way. An absent collection is emitted as nil.
func (s *TimeLoggerService) TimerGroups(ctx context.Context, userID, loggerID string) (*store.Feed[[]model.TimerGroup], error) {
	path, err := store.TimerGroupsPath(userID, loggerID)
	if err != nil {
		return nil, err
	}
	return subscribe(ctx, s, path, decodeTimerGroups)
}

func (s *TimeLoggerService) ReadTimerGroups(ctx context.Context, userID, loggerID string) ([]model.TimerGroup, error) {
	path, err := store.TimerGroupsPath(userID, loggerID)
	if err != nil {
		return nil, err
	}
	return readOnce(ctx, s, path, decodeTimerGroups)
}

func (s *TimeLoggerService) TimerGroup(ctx context.Context, userID, loggerID, groupID string) (*store.Feed[*model.TimerGroup], error) {
	path, err := store.TimerGroupPath(userID, loggerID, groupID)
	if err != nil {
		return nil, err
	}
	return subscribe(ctx, s, path, decodeTimerGroup)
}

func (s *TimeLoggerService) ReadTimerGroup(ctx context.Context, userID, loggerID, groupID string) (*model.TimerGroup, error) {
	path, err := store.TimerGroupPath(userID, loggerID, groupID)
	if err != nil {
		return nil, err
	}
	return readOnce(ctx, s, path, decodeTimerGroup)
}

func (s *TimeLoggerService) Timers(ctx context.Context, userID, loggerID, groupID string) (*store.Feed[[]model.Timer], error) {
	path, err := store.TimersPath(userID, loggerID, groupID)
	if err != nil {
		return nil, err
	}
	return subscribe(ctx, s, path, decodeTimers)
}

func (s *TimeLoggerService) ReadTimers(ctx context.Context, userID, loggerID, groupID string) ([]model.Timer, error) {
	path, err := store.TimersPath(userID, loggerID, groupID)
	if err != nil {
		return nil, err
	}
	return readOnce(ctx, s, path, decodeTimers)
}

func (s *TimeLoggerService) ReadTimer(ctx context.Context, userID, loggerID, groupID, timerID string) (*model.Timer, error) {
	path, err := store.TimerPath(userID, loggerID, groupID, timerID)
	if err != nil {
		return nil, err
	}
	timer, err := readOnce(ctx, s, path, decodeTimer)
	if timer != nil && timer.ID == "" {
		timer.ID = timerID
	}
	return timer, err
}

// AddTimerGroup writes the group header and then each seeded timer as its
// own patch. A failed timer write does not undo the others.
func (s *TimeLoggerService) AddTimerGroup(ctx context.Context, userID, loggerID string, group model.TimerGroup) error {
	path, err := store.TimerGroupPath(userID, loggerID, group.ID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: group.ID}
	errs := []error{s.write(ctx, "addTimerGroup", model.OperationCreate, at, path, map[string]any{
		"id":        group.ID,
		"name":      group.Name,
		"createdAt": group.CreatedAt,
	})}
	for _, timer := range group.Timers {
		errs = append(errs, s.AddTimer(ctx, userID, loggerID, group.ID, timer))
	}
	return errors.Join(errs...)
}

func (s *TimeLoggerService) RenameTimerGroup(ctx context.Context, userID, loggerID, groupID, name string) error {
	path, err := store.TimerGroupPath(userID, loggerID, groupID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID}
	return s.write(ctx, "changeTimerGroupName", model.OperationRename, at, path, map[string]any{"name": name})
}

func (s *TimeLoggerService) DeleteTimerGroup(ctx context.Context, userID, loggerID, groupID string) error {
	path, err := store.TimerGroupPath(userID, loggerID, groupID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID}
	return s.remove(ctx, "deleteTimerGroup", at, path)
}

func (s *TimeLoggerService) AddTimer(ctx context.Context, userID, loggerID, groupID string, timer model.Timer) error {
	path, err := store.TimerPath(userID, loggerID, groupID, timer.ID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timer.ID}
	return s.write(ctx, "addTimer", model.OperationCreate, at, path, map[string]any{
		"id":         timer.ID,
		"name":       timer.Name,
		"startTime":  timer.StartTime,
		"endTime":    timer.EndTime,
		"isRunning":  timer.IsRunning,
		"elapsedSec": timer.ElapsedSec,
		"createdAt":  timer.CreatedAt,
	})
}

func (s *TimeLoggerService) RenameTimer(ctx context.Context, userID, loggerID, groupID, timerID, name string) error {
	path, err := store.TimerPath(userID, loggerID, groupID, timerID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timerID}
	return s.write(ctx, "changeTimerName", model.OperationRename, at, path, map[string]any{"name": name})
}

func (s *TimeLoggerService) DeleteTimer(ctx context.Context, userID, loggerID, groupID, timerID string) error {
	path, err := store.TimerPath(userID, loggerID, groupID, timerID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timerID}
	return s.remove(ctx, "deleteTimer", at, path)
}

// StartTimer stops every other running timer in the group, banking its
// elapsed seconds, and starts the target. All patches use one instant and
// are submitted concurrently. Starting a running timer changes nothing.
func (s *TimeLoggerService) StartTimer(ctx context.Context, userID, loggerID, groupID, timerID string) error {
	if _, err := store.TimerPath(userID, loggerID, groupID, timerID); err != nil {
		return err
	}
	unlock := s.groupLocks.Lock(userID + "/" + loggerID + "/" + groupID)
	defer unlock()

	now := s.clock.Now()
	timers, err := s.ReadTimers(ctx, userID, loggerID, groupID)
	if err != nil {
		return fmt.Errorf("read timers: %w", err)
	}

	var current *model.Timer
	for i := range timers {
		if timers[i].ID == timerID {
			current = &timers[i]
			break
		}
	}
	if current == nil {
		return ErrTimerNotFound
	}
	if current.IsRunning {
		return nil
	}

	var g errgroup.Group
	for _, timer := range timers {
		if timer.ID == timerID || !timer.IsRunning {
			continue
		}
		g.Go(func() error {
			return s.writeStop(ctx, userID, loggerID, groupID, timer, now)
		})
	}
	g.Go(func() error {
		path, _ := store.TimerPath(userID, loggerID, groupID, timerID)
		at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timerID}
		return s.write(ctx, "startTimer", model.OperationStart, at, path, map[string]any{
			"isRunning": true,
			"startTime": now,
			"endTime":   nil,
		})
	})
	return g.Wait()
}

// StopTimer banks the seconds of the current run and clears the start marker.
func (s *TimeLoggerService) StopTimer(ctx context.Context, userID, loggerID, groupID, timerID string) error {
	if _, err := store.TimerPath(userID, loggerID, groupID, timerID); err != nil {
		return err
	}
	unlock := s.groupLocks.Lock(userID + "/" + loggerID + "/" + groupID)
	defer unlock()

	now := s.clock.Now()
	timer, err := s.ReadTimer(ctx, userID, loggerID, groupID, timerID)
	if err != nil {
		return fmt.Errorf("read timer: %w", err)
	}
	if timer == nil {
		return ErrTimerNotFound
	}
	return s.writeStop(ctx, userID, loggerID, groupID, *timer, now)
}

func (s *TimeLoggerService) writeStop(ctx context.Context, userID, loggerID, groupID string, timer model.Timer, now time.Time) error {
	fields := map[string]any{
		"isRunning": false,
		"startTime": nil,
		"endTime":   now,
	}
	if timer.IsRunning && timer.StartTime != nil {
		fields["elapsedSec"] = timer.ElapsedSec + model.RunSec(*timer.StartTime, now)
	}

	path, err := store.TimerPath(userID, loggerID, groupID, timer.ID)
	if err != nil {
		return err
	}
	at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timer.ID}
	return s.write(ctx, "stopTimer", model.OperationStop, at, path, fields)
}

// ResetTimer zeroes the banked seconds and leaves everything else as is.
// An unknown timer is not created.
func (s *TimeLoggerService) ResetTimer(ctx context.Context, userID, loggerID, groupID, timerID string) error {
	path, err := store.TimerPath(userID, loggerID, groupID, timerID)
	if err != nil {
		return err
	}
	unlock := s.groupLocks.Lock(userID + "/" + loggerID + "/" + groupID)
	defer unlock()

	timer, err := s.ReadTimer(ctx, userID, loggerID, groupID, timerID)
	if err != nil {
		return fmt.Errorf("read timer: %w", err)
	}
	if timer == nil {
		return ErrTimerNotFound
	}

	at := target{userID: userID, loggerID: loggerID, groupID: groupID, timerID: timerID}
	return s.write(ctx, "resetTimer", model.OperationOther, at, path, map[string]any{"elapsedSec": 0})
}

func (s *TimeLoggerService) write(
	ctx context.Context,
	op string,
	opType model.OperationType,
	at target,
	path string,
	fields map[string]any,
) error {
	err := s.store.Update(ctx, path, fields)
	s.report(op, opType, at, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *TimeLoggerService) remove(ctx context.Context, op string, at target, path string) error {
	err := s.store.Delete(ctx, path)
	s.report(op, model.OperationDelete, at, err)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *TimeLoggerService) report(op string, opType model.OperationType, at target, err error) {
	metrics.WriteResult(op, err)

	entry := model.OperationLog{
		ID:              uuid.NewString(),
		UserID:          at.userID,
		LoggerID:        at.loggerID,
		TimerGroupID:    at.groupID,
		TimerID:         at.timerID,
		OperationType:   opType,
		OperationDetail: op,
		Timestamp:       s.clock.Now(),
	}
	if err != nil {
		s.logger.Error().Err(err).EmbedObject(entry).Msg(op + " error")
		return
	}
	s.logger.Debug().EmbedObject(entry).Msg(op + " success")
}

func subscribe[T any](
	ctx context.Context,
	s *TimeLoggerService,
	path string,
	decode func(json.RawMessage) (T, error),
) (*store.Feed[T], error) {
	sub, err := s.store.Subscribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return store.NewFeed(sub, func(raw json.RawMessage) T {
		value, err := decode(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Dropping undecodable snapshot")
		}
		return value
	}), nil
}

func readOnce[T any](
	ctx context.Context,
	s *TimeLoggerService,
	path string,
	decode func(json.RawMessage) (T, error),
) (T, error) {
	var zero T
	raw, err := s.store.Get(ctx, path)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	value, err := decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Treating undecodable snapshot as absent")
		return zero, nil
	}
	return value, nil
}
