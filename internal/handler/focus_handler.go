package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type FocusHandler struct {
	focusService *service.FocusService
}

// baseVersion is optional on every command; 0 skips the conflict check.
type versionRequest struct {
	BaseVersion int `json:"baseVersion"`
}

type switchModeRequest struct {
	BaseVersion int    `json:"baseVersion"`
	Mode        string `json:"mode"`
}

type adjustRequest struct {
	BaseVersion int `json:"baseVersion"`
	Minutes     int `json:"minutes"`
}

type focusSettingsRequest struct {
	BaseVersion          int `json:"baseVersion"`
	FocusDurationSeconds int `json:"focusDurationSeconds"`
	BreakDurationSeconds int `json:"breakDurationSeconds"`
}

func NewFocusHandler(focusService *service.FocusService) *FocusHandler {
	return &FocusHandler{focusService: focusService}
}

func (h *FocusHandler) GetState(c *gin.Context) {
	state, apiErr := h.focusService.State(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) Start(c *gin.Context) {
	var req versionRequest
	if !bindOptional(c, &req) {
		return
	}
	state, apiErr := h.focusService.Start(c.Request.Context(), middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) Pause(c *gin.Context) {
	var req versionRequest
	if !bindOptional(c, &req) {
		return
	}
	state, apiErr := h.focusService.Pause(c.Request.Context(), middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) Reset(c *gin.Context) {
	var req versionRequest
	if !bindOptional(c, &req) {
		return
	}
	state, apiErr := h.focusService.Reset(c.Request.Context(), middleware.UserID(c), req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) SwitchMode(c *gin.Context) {
	var req switchModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	state, apiErr := h.focusService.SwitchMode(c.Request.Context(), middleware.UserID(c), req.Mode, req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	state, apiErr := h.focusService.Adjust(c.Request.Context(), middleware.UserID(c), req.Minutes, req.BaseVersion)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) UpdateSettings(c *gin.Context) {
	var req focusSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}
	state, apiErr := h.focusService.UpdateSettings(c.Request.Context(), middleware.UserID(c), service.FocusSettingsInput{
		BaseVersion:          req.BaseVersion,
		FocusDurationSeconds: req.FocusDurationSeconds,
		BreakDurationSeconds: req.BreakDurationSeconds,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *FocusHandler) GetHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	sessions, apiErr := h.focusService.History(c.Request.Context(), middleware.UserID(c), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidJSON(c)
		return false
	}
	return true
}
