package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/telehealth-api/internal/apperr"
	"github.com/harentsoaR/telehealth-api/internal/models"
	"github.com/harentsoaR/telehealth-api/internal/utils"
)

// Context keys set by Auth.
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

// Auth validates the bearer token and stores the caller in the gin context.
// Browsers cannot set headers on a websocket upgrade, so a token query
// parameter is accepted as well.
func Auth(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			Abort(c, apperr.Unauthorized("Authorization header required"))
			return
		}

		claims, err := jwt.Validate(tokenString)
		if err != nil {
			Abort(c, apperr.Unauthorized("Invalid token"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserRoleKey) != models.RoleAdmin {
			Abort(c, apperr.Forbidden("Admin access required"))
			return
		}
		c.Next()
	}
}

// Abort writes the error body used across the API and stops the chain.
func Abort(c *gin.Context, e *apperr.Error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(e.Kind), gin.H{"message": e.Message, "code": e.Code})
}
