package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"timelogger/backend/internal/live"
	"timelogger/backend/internal/middleware"
)

type LiveHandler struct {
	hub      *live.Hub
	services live.Services
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewLiveHandler accepts sockets from origins the policy allows and from
// clients that send no Origin header.
func NewLiveHandler(hub *live.Hub, services live.Services, origins middleware.OriginPolicy, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		hub:      hub,
		services: services,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins.Allows(origin)
			},
		},
		logger: logger.With().Str("component", "live_handler").Logger(),
	}
}

func (h *LiveHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := live.NewClient(h.hub, conn, middleware.UserID(c), h.services, h.logger)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}
