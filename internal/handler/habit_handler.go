package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/engine"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/model"
	"trackx/backend/internal/service"
)

type HabitHandler struct {
	habitService *service.HabitService
}

type habitRequest struct {
	Name      string `json:"name"`
	Goal      string `json:"goal"`
	Frequency string `json:"frequency"`
	StartDate string `json:"startDate"`
}

func (r habitRequest) input() engine.HabitInput {
	return engine.HabitInput{
		Name:      r.Name,
		Goal:      r.Goal,
		Frequency: r.Frequency,
		StartDate: r.StartDate,
	}
}

type markDoneRequest struct {
	Today string `json:"today"`
}

func NewHabitHandler(habitService *service.HabitService) *HabitHandler {
	return &HabitHandler{habitService: habitService}
}

func (h *HabitHandler) List(c *gin.Context) {
	habits, apiErr := h.habitService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habits": habits})
}

func (h *HabitHandler) Create(c *gin.Context) {
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	habit, apiErr := h.habitService.Create(c.Request.Context(), middleware.UserID(c), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

func (h *HabitHandler) Update(c *gin.Context) {
	var req habitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	habit, apiErr := h.habitService.Edit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"habit": habit})
}

// MarkDone accepts an optional body with the caller's local date.
func (h *HabitHandler) MarkDone(c *gin.Context) {
	var req markDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidJSON(c)
		return
	}

	result, apiErr := h.habitService.MarkDone(c.Request.Context(), middleware.UserID(c), c.Param("id"), model.Date(req.Today))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HabitHandler) Fail(c *gin.Context) {
	result, apiErr := h.habitService.Fail(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HabitHandler) Delete(c *gin.Context) {
	if apiErr := h.habitService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
