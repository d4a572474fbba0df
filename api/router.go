// Package api - HTTP routing for the detection API.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nvr-ai/go-detect/api/handler"
	"github.com/nvr-ai/go-detect/api/middleware"
	"github.com/nvr-ai/go-detect/profiler"
)

// SetupRouter wires the detection endpoints onto a gin engine.
//
// Arguments:
//   - h: The handler holding the injected model sessions.
//   - rp: Optional runtime profiler for per-endpoint latency tracking.
//
// Returns:
//   - The configured engine, ready to run.
func SetupRouter(h *handler.Handler, rp *profiler.RuntimeProfiler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	if rp != nil {
		r.Use(middleware.Profile(rp))
	}

	r.GET("/health", h.Health)
	r.GET("/models", h.Models)

	r.POST("/grounding-dino", h.GroundingDINO)
	r.POST("/yolo", h.YOLOv8)
	r.POST("/yolo11", h.YOLOv11)

	return r
}
