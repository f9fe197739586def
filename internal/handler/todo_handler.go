package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/engine"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type TodoHandler struct {
	todoService *service.TodoService
}

type todoRequest struct {
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
	Priority string `json:"priority"`
}

func (r todoRequest) input() engine.TodoInput {
	return engine.TodoInput{Title: r.Title, Deadline: r.Deadline, Priority: r.Priority}
}

type toggleRequest struct {
	Completed *bool `json:"completed"`
}

func NewTodoHandler(todoService *service.TodoService) *TodoHandler {
	return &TodoHandler{todoService: todoService}
}

func (h *TodoHandler) List(c *gin.Context) {
	todos, apiErr := h.todoService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todos": todos})
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	todo, apiErr := h.todoService.Create(c.Request.Context(), middleware.UserID(c), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"todo": todo})
}

func (h *TodoHandler) Update(c *gin.Context) {
	var req todoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	todo, apiErr := h.todoService.Edit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": todo})
}

// Toggle flips a todo, or sets it to the optional "completed" target.
func (h *TodoHandler) Toggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeInvalidJSON(c)
		return
	}

	todo, apiErr := h.todoService.Toggle(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Completed)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"todo": todo})
}

func (h *TodoHandler) Delete(c *gin.Context) {
	if apiErr := h.todoService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
