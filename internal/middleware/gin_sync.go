package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireSync adapts SyncMiddleware.RequireSync to Gin.
func GinRequireSync(s *SyncMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})

		s.RequireSync(next).ServeHTTP(c.Writer, c.Request)

		// rejected, or the chain already ran
		if c.Writer.Written() {
			c.Abort()
		}
	}
}
