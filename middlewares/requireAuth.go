package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/rma_backend/utils"
	"github.com/gin-gonic/gin"
)

// RequireAuth guards a route group: the request must carry either a valid
// session token (resolved by SessionMiddleware) or a valid bearer JWT
// (resolved by AuthMiddleware). Must run after both.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if _, ok := utils.GetUsernameFromContext(ctx); ok {
			c.Next()
			return
		}
		if CtxValue(ctx) != nil {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		c.Abort()
	}
}
