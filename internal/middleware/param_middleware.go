package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExtractUUIDParam validates a UUID URL parameter and stores it in the Gin
// context under contextKey.
func ExtractUUIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(paramName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			return
		}
		c.Set(contextKey, id.String())
		c.Next()
	}
}

// ExtractStringParam rejects blank or oversized URL parameters
func ExtractStringParam(paramName, contextKey string, maxLen int) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := strings.TrimSpace(c.Param(paramName))
		if v == "" || (maxLen > 0 && len(v) > maxLen) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			return
		}
		c.Set(contextKey, v)
		c.Next()
	}
}
