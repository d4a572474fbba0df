package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nvr-ai/go-detect/profiler"
)

// Profile records per-endpoint latency into the runtime profiler.
func Profile(rp *profiler.RuntimeProfiler) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := rp.StartOperation(c.Request.URL.Path)
		c.Next()
		done()
	}
}
