package response

import (
	"github.com/gin-gonic/gin"

	"notify-realtime/internal/models"
)

// Error aborts the request with a models.ErrorResponse body.
func Error(c *gin.Context, status, code int, details string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Code:    code,
		Message: Message(code),
		Details: details,
	})
}
