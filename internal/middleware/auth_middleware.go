package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "trackx/backend/internal/errors"
	"trackx/backend/internal/service"
)

const IdentityContextKey = "identity"

func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := ""
		switch {
		case strings.HasPrefix(authHeader, "Bearer "):
			token = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		case authHeader == "" && c.Query("access_token") != "":
			// EventSource cannot set headers.
			token = c.Query("access_token")
		case authHeader == "":
			writeError(c, apperrors.Unauthorized("missing authorization header"))
			return
		}
		if token == "" {
			writeError(c, apperrors.Unauthorized("invalid authorization format"))
			return
		}

		identity, apiErr := authService.Authenticate(c.Request.Context(), token)
		if apiErr != nil {
			writeError(c, apiErr)
			return
		}

		c.Set(IdentityContextKey, *identity)
		c.Next()
	}
}

func Identity(c *gin.Context) (service.Identity, bool) {
	value, ok := c.Get(IdentityContextKey)
	if !ok {
		return service.Identity{}, false
	}
	identity, ok := value.(service.Identity)
	return identity, ok
}

func UserID(c *gin.Context) string {
	identity, _ := Identity(c)
	return identity.UserID
}

func writeError(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, gin.H{
		"error": gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
			"details": apiErr.Details,
		},
	})
}
