package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody builds the JSON error envelope shared by every route. details is
// omitted when empty.
func ErrorBody(c *gin.Context, code, details string) gin.H {
	body := gin.H{
		"error":     code,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"requestId": RequestIDFrom(c),
	}
	if details != "" {
		body["details"] = details
	}
	return body
}
