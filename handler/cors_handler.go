package handler

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

const ALLOW_ANY_ORIGIN = "*"

type CorsHandler struct {
	allowedOrigins []string
}

// NewCorsHandler allows every origin when origins is empty or contains "*".
func NewCorsHandler(origins []string) *CorsHandler {
	return &CorsHandler{allowedOrigins: origins}
}

func (h *CorsHandler) allowOrigin(origin string) string {
	if len(h.allowedOrigins) == 0 || slices.Contains(h.allowedOrigins, ALLOW_ANY_ORIGIN) {
		return ALLOW_ANY_ORIGIN
	}
	if origin != "" && slices.Contains(h.allowedOrigins, origin) {
		return origin
	}
	return ""
}

func (h *CorsHandler) CorsMiddleware(c *gin.Context) {
	if allowed := h.allowOrigin(c.GetHeader("Origin")); allowed != "" {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowed)
		if allowed != ALLOW_ANY_ORIGIN {
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	}

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
