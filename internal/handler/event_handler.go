package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/engine"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type EventHandler struct {
	eventService *service.EventService
}

type eventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (r eventRequest) input() engine.EventInput {
	return engine.EventInput{
		Title:       r.Title,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		Description: r.Description,
	}
}

func NewEventHandler(eventService *service.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func (h *EventHandler) List(c *gin.Context) {
	events, apiErr := h.eventService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EventHandler) Day(c *gin.Context) {
	events, apiErr := h.eventService.Day(c.Request.Context(), middleware.UserID(c), c.Query("date"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EventHandler) Create(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	event, apiErr := h.eventService.Create(c.Request.Context(), middleware.UserID(c), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

func (h *EventHandler) Update(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	event, apiErr := h.eventService.Edit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *EventHandler) Delete(c *gin.Context) {
	if apiErr := h.eventService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
