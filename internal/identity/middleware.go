package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxClaims = "campusbot_admin_claims"

// RequireAdmin returns a Gin middleware that enforces a valid admin token.
// The token is read from the Authorization header, or from the "token" query
// parameter for the HTML form routes.
func RequireAdmin(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin role required",
			})
			return
		}

		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx returns the claims stored by RequireAdmin, or nil.
func ClaimsFromCtx(c *gin.Context) *Claims {
	v, _ := c.Get(ctxClaims)
	claims, _ := v.(*Claims)
	return claims
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
