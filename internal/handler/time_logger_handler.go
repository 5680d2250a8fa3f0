package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"timelogger/backend/internal/clock"
	apperrors "timelogger/backend/internal/errors"
	"timelogger/backend/internal/live"
	"timelogger/backend/internal/middleware"
	"timelogger/backend/internal/model"
	"timelogger/backend/internal/service"
)

type TimeLoggerHandler struct {
	timeLoggers *service.TimeLoggerService
	clock       clock.Clock
}

type nameRequest struct {
	Name string `json:"name"`
}

type renameRequest struct {
	Name *string `json:"name"`
}

type editModeRequest struct {
	IsEditMode *bool `json:"isEditMode"`
}

func NewTimeLoggerHandler(timeLoggers *service.TimeLoggerService, clk clock.Clock) *TimeLoggerHandler {
	return &TimeLoggerHandler{timeLoggers: timeLoggers, clock: clk}
}

func (h *TimeLoggerHandler) InitTimeLogger(c *gin.Context) {
	name, ok := bindOptionalName(c)
	if !ok {
		return
	}
	if name == "" {
		name = model.DefaultTimeLoggerName
	}

	loggerID := c.Param("loggerId")
	if err := h.timeLoggers.InitTimeLogger(c.Request.Context(), middleware.UserID(c), loggerID, name, h.clock.Now()); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggerId": loggerID, "name": name})
}

func (h *TimeLoggerHandler) GetEditMode(c *gin.Context) {
	isEditMode, err := h.timeLoggers.ReadEditMode(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isEditMode": isEditMode})
}

func (h *TimeLoggerHandler) UpdateEditMode(c *gin.Context) {
	var req editModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	if req.IsEditMode == nil {
		writeError(c, apperrors.BadRequest("invalid_edit_mode", "isEditMode is required"))
		return
	}

	if err := h.timeLoggers.UpdateEditMode(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), *req.IsEditMode); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isEditMode": *req.IsEditMode})
}

func (h *TimeLoggerHandler) ListTimerGroups(c *gin.Context) {
	groups, err := h.timeLoggers.ReadTimerGroups(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	views := live.NewTimerGroupViews(groups, h.clock.Now())
	if views == nil {
		views = []live.TimerGroupView{}
	}
	c.JSON(http.StatusOK, gin.H{"timerGroups": views})
}

func (h *TimeLoggerHandler) AddTimerGroup(c *gin.Context) {
	name, ok := bindOptionalName(c)
	if !ok {
		return
	}

	now := h.clock.Now()
	group := model.DefaultTimerGroup(now)
	if name != "" {
		group.Name = name
	}

	if err := h.timeLoggers.AddTimerGroup(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), group); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timerGroup": live.NewTimerGroupView(group, now)})
}

func (h *TimeLoggerHandler) GetTimerGroup(c *gin.Context) {
	group, err := h.timeLoggers.ReadTimerGroup(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if group == nil {
		writeError(c, apperrors.NotFound("timer_group_not_found", "timer group not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"timerGroup": live.NewTimerGroupView(*group, h.clock.Now())})
}

func (h *TimeLoggerHandler) RenameTimerGroup(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}

	err := h.timeLoggers.RenameTimerGroup(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"), name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimeLoggerHandler) DeleteTimerGroup(c *gin.Context) {
	err := h.timeLoggers.DeleteTimerGroup(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimeLoggerHandler) AddTimer(c *gin.Context) {
	name, ok := bindOptionalName(c)
	if !ok {
		return
	}

	now := h.clock.Now()
	timer := model.DefaultTimer(now)
	if name != "" {
		timer.Name = name
	}

	err := h.timeLoggers.AddTimer(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"), timer)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"timer": live.TimerView{Timer: timer, ElapsedSecNow: timer.ElapsedSecAt(now)}})
}

func (h *TimeLoggerHandler) RenameTimer(c *gin.Context) {
	name, ok := bindName(c)
	if !ok {
		return
	}

	err := h.timeLoggers.RenameTimer(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"), c.Param("timerId"), name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimeLoggerHandler) DeleteTimer(c *gin.Context) {
	err := h.timeLoggers.DeleteTimer(c.Request.Context(), middleware.UserID(c), c.Param("loggerId"), c.Param("groupId"), c.Param("timerId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TimeLoggerHandler) StartTimer(c *gin.Context) {
	h.transition(c, h.timeLoggers.StartTimer)
}

func (h *TimeLoggerHandler) StopTimer(c *gin.Context) {
	h.transition(c, h.timeLoggers.StopTimer)
}

func (h *TimeLoggerHandler) ResetTimer(c *gin.Context) {
	h.transition(c, h.timeLoggers.ResetTimer)
}

type timerTransition func(ctx context.Context, userID, loggerID, groupID, timerID string) error

// transition applies a timer state change and answers with the timer as
// read back from the store.
func (h *TimeLoggerHandler) transition(c *gin.Context, apply timerTransition) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	loggerID, groupID, timerID := c.Param("loggerId"), c.Param("groupId"), c.Param("timerId")

	if err := apply(ctx, userID, loggerID, groupID, timerID); err != nil {
		writeServiceError(c, err)
		return
	}

	timer, err := h.timeLoggers.ReadTimer(ctx, userID, loggerID, groupID, timerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if timer == nil {
		writeError(c, apperrors.NotFound("timer_not_found", "timer not found"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": live.TimerView{Timer: *timer, ElapsedSecNow: timer.ElapsedSecAt(h.clock.Now())}})
}

// bindName requires the name field to be present and takes it as sent.
// An empty name is a valid rename.
func bindName(c *gin.Context) (string, bool) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return "", false
	}
	if req.Name == nil {
		writeError(c, apperrors.BadRequest("invalid_name", "name is required"))
		return "", false
	}
	return *req.Name, true
}

// bindOptionalName accepts an empty body as no name.
func bindOptionalName(c *gin.Context) (string, bool) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidJSON(c)
		return "", false
	}
	return strings.TrimSpace(req.Name), true
}
