package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

// requestContext pulls the request context off a gin context, falling back
// to background when handlers run without a real request (tests).
func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}
