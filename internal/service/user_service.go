package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/identity"
	"timelogger/backend/internal/metrics"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/store"
)

// Navigator moves a signed-in user's open sessions to a time logger.
type Navigator interface {
	Navigate(ctx context.Context, userID, loggerID string)
}

type UserService struct {
	store       store.Store
	timeLoggers *TimeLoggerService
	navigator   Navigator
	clock       clock.Clock
	logger      zerolog.Logger
}

type SignInResult struct {
	Profile         model.UserDetail `json:"profile"`
	LandingLoggerID string           `json:"landingLoggerId"`
	Created         bool             `json:"created"`
}

func NewUserService(
	s store.Store,
	timeLoggers *TimeLoggerService,
	navigator Navigator,
	clk clock.Clock,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		store:       s,
		timeLoggers: timeLoggers,
		navigator:   navigator,
		clock:       clk,
		logger:      logger.With().Str("component", "user").Logger(),
	}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*store.Feed[*model.UserDetail], error) {
	path, err := store.UserDetailsPath(userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.store.Subscribe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	return store.NewFeed(sub, func(raw json.RawMessage) *model.UserDetail {
		detail, err := decodeUserDetail(raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Dropping undecodable profile")
		}
		return detail
	}), nil
}

func (s *UserService) ReadProfile(ctx context.Context, userID string) (*model.UserDetail, error) {
	path, err := store.UserDetailsPath(userID)
	if err != nil {
		return nil, err
	}
	raw, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return decodeUserDetail(raw)
}

// SignedIn makes sure the user has a profile and at least one time logger,
// stamps lastLogin and sends the user's sessions to their first logger.
// Writes are submitted concurrently and navigation happens even if one of
// them failed.
func (s *UserService) SignedIn(ctx context.Context, who identity.Identity) (*SignInResult, error) {
	path, err := store.UserDetailsPath(who.UID)
	if err != nil {
		return nil, err
	}

	detail, err := s.ReadProfile(ctx, who.UID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	created := false
	var newLogger *model.TimeLoggerInfo
	if detail == nil {
		created = true
		createdAt := now
		detail = &model.UserDetail{
			ID:        who.UID,
			Name:      who.DisplayName,
			CreatedAt: &createdAt,
		}
	}
	if detail.ID == "" {
		detail.ID = who.UID
	}
	if len(detail.TimeLoggers) == 0 {
		newLogger = &model.TimeLoggerInfo{ID: uuid.NewString(), Name: model.DefaultTimeLoggerName}
		detail.TimeLoggers = append(detail.TimeLoggers, *newLogger)
	}
	lastLogin := now
	detail.LastLogin = &lastLogin

	var g errgroup.Group
	if newLogger != nil {
		g.Go(func() error {
			return s.timeLoggers.InitTimeLogger(ctx, who.UID, newLogger.ID, newLogger.Name, now)
		})
	}
	g.Go(func() error {
		return s.updateProfile(ctx, path, *detail)
	})
	writeErr := g.Wait()

	landing := detail.TimeLoggers[0].ID
	if s.navigator != nil {
		s.navigator.Navigate(ctx, who.UID, landing)
	}

	metrics.SignInsTotal.WithLabelValues(who.Provider, fmt.Sprint(created)).Inc()
	s.logger.Info().
		Str("user_id", who.UID).
		Str("provider", who.Provider).
		Bool("created", created).
		Str("logger_id", landing).
		Msg("User signed in")

	return &SignInResult{Profile: *detail, LandingLoggerID: landing, Created: created}, writeErr
}

func (s *UserService) updateProfile(ctx context.Context, path string, detail model.UserDetail) error {
	err := s.store.Update(ctx, path, map[string]any{
		"id":          detail.ID,
		"name":        detail.Name,
		"timeLoggers": detail.TimeLoggers,
		"lastLogin":   detail.LastLogin,
		"createdAt":   detail.CreatedAt,
	})
	metrics.WriteResult("updateUserDetail", err)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", detail.ID).Msg("updateUserDetail error")
		return fmt.Errorf("updateUserDetail: %w", err)
	}
	s.logger.Debug().Str("user_id", detail.ID).Msg("updateUserDetail success")
	return nil
}
