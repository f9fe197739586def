package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

const keepAliveInterval = 25 * time.Second

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) Get(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	state, apiErr := h.statsService.Get(c.Request.Context(), identity)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": state})
}

// Stream sends a "dashboard" event whenever the derived state changes. The
// stream ends after the signed-out state when the session is closed.
func (h *StatsHandler) Stream(c *gin.Context) {
	identity, ok := middleware.Identity(c)
	if !ok {
		writeError(c, apperrors.Unauthorized(""))
		return
	}

	ctx := c.Request.Context()
	states, apiErr := h.statsService.Stream(ctx, identity)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case state, ok := <-states:
			if !ok {
				return false
			}
			if state.User != nil && !state.Ready() {
				return true
			}
			c.SSEvent("dashboard", state)
			return state.User != nil
		}
	})
}
