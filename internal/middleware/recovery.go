package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"prizedraw/pkg/log"
	"prizedraw/pkg/utils"
)

// Recovery turns handler panics into a 500 response instead of killing the
// worker.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(map[string]interface{}{
			"error":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"ip":     c.ClientIP(),
			"stack":  string(debug.Stack()),
		}).Error("Panic recovered")

		utils.Error(c, utils.CodeInternalError, "internal server error")
	})
}
