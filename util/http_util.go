// util/http_util.go
package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/bouncer/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("requestID", c.GetString("requestID")),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetRequestID returns the ID assigned by the request ID middleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString("requestID")
}

func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString("requestingUserID")
}
