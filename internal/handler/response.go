package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "timelogger/backend/internal/errors"
	"timelogger/backend/internal/service"
	"timelogger/backend/internal/store"
)

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	if apiErr == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "internal server error",
			},
		})
		return
	}

	errorBody := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		errorBody["details"] = apiErr.Details
	}

	c.JSON(apiErr.Status, gin.H{
		"error": errorBody,
	})
}

func writeInvalidJSON(c *gin.Context) {
	writeError(c, apperrors.BadRequest("invalid_json", "invalid request body"))
}

// writeServiceError maps engine and store errors onto the API envelope.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimerNotFound):
		writeError(c, apperrors.NotFound("timer_not_found", "timer not found"))
	case errors.Is(err, store.ErrInvalidPath):
		writeError(c, apperrors.BadRequest("invalid_path", err.Error()))
	default:
		_ = c.Error(err)
		writeError(c, apperrors.Internal("store operation failed"))
	}
}
