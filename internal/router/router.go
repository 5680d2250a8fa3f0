package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/handler"
	"timelogger/backend/internal/metrics"
	"timelogger/backend/internal/middleware"
	"timelogger/backend/internal/service"
)

type Handlers struct {
	Auth        *handler.AuthHandler
	TimeLoggers *handler.TimeLoggerHandler
	Live        *handler.LiveHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	origins middleware.OriginPolicy,
	logger zerolog.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.Logging(logger), gin.Recovery(), middleware.CORS(origins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)
	auth.POST("/anonymous", handlers.Auth.Anonymous)
	auth.POST("/firebase", handlers.Auth.Firebase)

	protected := api.Group("")
	protected.Use(middleware.Auth(authService))
	protected.POST("/auth/logout", handlers.Auth.Logout)
	protected.GET("/me", handlers.Auth.Me)
	protected.GET("/live", handlers.Live.Serve)

	loggers := protected.Group("/loggers/:loggerId")
	loggers.PUT("", handlers.TimeLoggers.InitTimeLogger)
	loggers.GET("/edit-mode", handlers.TimeLoggers.GetEditMode)
	loggers.PUT("/edit-mode", handlers.TimeLoggers.UpdateEditMode)

	loggers.GET("/groups", handlers.TimeLoggers.ListTimerGroups)
	loggers.POST("/groups", handlers.TimeLoggers.AddTimerGroup)
	loggers.GET("/groups/:groupId", handlers.TimeLoggers.GetTimerGroup)
	loggers.PATCH("/groups/:groupId", handlers.TimeLoggers.RenameTimerGroup)
	loggers.DELETE("/groups/:groupId", handlers.TimeLoggers.DeleteTimerGroup)

	timers := loggers.Group("/groups/:groupId/timers")
	timers.POST("", handlers.TimeLoggers.AddTimer)
	timers.PATCH("/:timerId", handlers.TimeLoggers.RenameTimer)
	timers.DELETE("/:timerId", handlers.TimeLoggers.DeleteTimer)
	timers.POST("/:timerId/start", handlers.TimeLoggers.StartTimer)
	timers.POST("/:timerId/stop", handlers.TimeLoggers.StopTimer)
	timers.POST("/:timerId/reset", handlers.TimeLoggers.ResetTimer)

	return engine
}
