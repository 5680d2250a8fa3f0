package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"timelogger/backend/internal/clock"
	"timelogger/backend/internal/config"
	"timelogger/backend/internal/db"
	"timelogger/backend/internal/handler"
	"timelogger/backend/internal/identity"
	"timelogger/backend/internal/live"
	"timelogger/backend/internal/logging"
	"timelogger/backend/internal/middleware"
	"timelogger/backend/internal/repository"
	"timelogger/backend/internal/router"
	"timelogger/backend/internal/service"
	"timelogger/backend/internal/store/backend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log.Logger = logger
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	applied, err := db.RunMigrations(ctx, database, cfg.MigrationsDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logger.Info().Str("path", cfg.DBPath).Strs("applied", applied).Msg("Database initialized")

	app, err := backend.FirebaseApp(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Firebase")
	}

	nodes, err := backend.Open(ctx, cfg, database, app, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := nodes.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()

	var verifier service.IdentityVerifier
	if app != nil {
		firebaseVerifier, err := identity.NewFirebaseVerifier(ctx, app)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Firebase auth")
		}
		verifier = firebaseVerifier
	}

	clk := clock.Real{}
	hub := live.NewHub(logger)

	timeLoggers := service.NewTimeLoggerService(nodes, clk, logger)
	users := service.NewUserService(nodes, timeLoggers, hub, clk, logger)
	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, users, verifier, cfg.JWTSecret, cfg.TokenTTL, logger)

	origins := middleware.NewOriginPolicy(cfg.CORSOrigins)
	engine := router.New(authService, router.Handlers{
		Auth:        handler.NewAuthHandler(authService, users, hub),
		TimeLoggers: handler.NewTimeLoggerHandler(timeLoggers, clk),
		Live: handler.NewLiveHandler(hub, live.Services{
			TimeLoggers: timeLoggers,
			Users:       users,
			Clock:       clk,
		}, origins, logger),
	}, origins, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("store", cfg.StoreBackend).
			Bool("firebase_auth", verifier != nil).
			Msg("Backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return
	}
	logger.Info().Msg("Backend stopped")
}
