package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequestObserver records served requests
type RequestObserver interface {
	ObserveRequest(method string, status int)
}

// RequestMetrics returns a Gin middleware that counts requests by method and status
func RequestMetrics(o RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		o.ObserveRequest(c.Request.Method, c.Writer.Status())
	}
}
