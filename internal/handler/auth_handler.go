package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "timelogger/backend/internal/errors"
	"timelogger/backend/internal/middleware"
	"timelogger/backend/internal/service"
)

// Disconnector closes a user's live sessions.
type Disconnector interface {
	Disconnect(userID string)
}

type AuthHandler struct {
	authService *service.AuthService
	users       *service.UserService
	sessions    Disconnector
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type firebaseRequest struct {
	IDToken string `json:"idToken"`
}

func NewAuthHandler(authService *service.AuthService, users *service.UserService, sessions Disconnector) *AuthHandler {
	return &AuthHandler{authService: authService, users: users, sessions: sessions}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Anonymous(c *gin.Context) {
	result, apiErr := h.authService.Anonymous(c.Request.Context())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Firebase(c *gin.Context) {
	var req firebaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.authService.Firebase(c.Request.Context(), req.IDToken)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Logout ends the user's live sessions. Session tokens are stateless and
// stay valid until they expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.sessions != nil {
		h.sessions.Disconnect(middleware.UserID(c))
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	profile, err := h.users.ReadProfile(ctx, userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if profile == nil {
		writeError(c, apperrors.NotFound("profile_not_found", "profile not found"))
		return
	}

	account, apiErr := h.authService.Account(ctx, userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	body := gin.H{"profile": profile}
	if account != nil {
		body["user"] = account
	}
	c.JSON(http.StatusOK, body)
}
