package approuters

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Murmur/internal/handler"
	"Murmur/internal/identity"
)

// RequireAuth rejects requests without a valid bearer token and puts the
// caller's user id into the gin context for the handlers downstream.
func RequireAuth(verifier *identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := verifier.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(handler.CallerIDKey, userID)
		c.Next()
	}
}
