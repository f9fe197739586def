package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/engine"
	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type NoteHandler struct {
	noteService *service.NoteService
}

type noteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (r noteRequest) input() engine.NoteInput {
	return engine.NoteInput{Title: r.Title, Content: r.Content, Category: r.Category}
}

func NewNoteHandler(noteService *service.NoteService) *NoteHandler {
	return &NoteHandler{noteService: noteService}
}

func (h *NoteHandler) List(c *gin.Context) {
	notes, apiErr := h.noteService.List(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

func (h *NoteHandler) Create(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	note, apiErr := h.noteService.Create(c.Request.Context(), middleware.UserID(c), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

func (h *NoteHandler) Update(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	note, apiErr := h.noteService.Edit(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.input())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

func (h *NoteHandler) Delete(c *gin.Context) {
	if apiErr := h.noteService.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.Status(http.StatusNoContent)
}
