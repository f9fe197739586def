package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trackx/backend/internal/middleware"
	"trackx/backend/internal/service"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile, apiErr := h.profileService.Get(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	profile, apiErr := h.profileService.Save(c.Request.Context(), middleware.UserID(c), service.ProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
