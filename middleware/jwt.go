package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/rag-assistant/types"
	"github.com/tieubaoca/rag-assistant/utils"
)

const AdminClaimsKey = "admin"

// AdminAuthMiddleware requires a Bearer token carrying the admin role. With an
// empty secret authentication is disabled and every request passes.
func AdminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := utils.ParseAdminToken(secret, parts[1])
		if err != nil || claims.Role != utils.ROLE_ADMIN {
			abortUnauthorized(c, "Invalid admin token")
			return
		}

		c.Set(AdminClaimsKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.DataResponse{
		Status:  types.STATUS_ERROR,
		Message: message,
	})
}
