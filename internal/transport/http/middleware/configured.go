package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lumina/internal/transport/http/response"
)

// RequireConfigured rejects API calls while store credentials are missing.
func RequireConfigured(configured bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !configured {
			response.Error(c, http.StatusServiceUnavailable, response.CodeConfigurationRequired,
				"configuration required: set STORE_URL and STORE_ANON_KEY")
			c.Abort()
			return
		}
		c.Next()
	}
}
