package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"envelope-service/internal/middleware"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(middleware.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDContextKey, requestID)
	return requestID
}
