package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"handoff-gateway/internal/api/models"
	"handoff-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery middleware recovers from panics that escape a handler
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		GetLogger(c, log).ReportError(c.Request.Context(), fmt.Errorf("panic: %v", recovered), map[string]interface{}{
			"path": c.Request.URL.Path,
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.BaseResponse{
			Success: false,
			Error: &models.ErrorInfo{
				Code:    models.ErrCodeInternalError,
				Message: "Internal server error",
			},
			Timestamp: time.Now().Unix(),
			RequestID: c.GetString("request_id"),
		})
	})
}
