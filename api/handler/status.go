package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModelInfo describes one backend in the /models catalog.
type ModelInfo struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Loaded   bool   `json:"loaded"`
	Type     string `json:"type"`
	Classes  string `json:"classes"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"models": gin.H{
			"grounding_dino": h.dino != nil && h.dino.Loaded(),
			"yolov8":         h.yolov8 != nil && h.yolov8.Loaded(),
			"yolov11":        h.yolov11 != nil && h.yolov11.Loaded(),
		},
		"device":      "cpu",
		"nms_enabled": true,
		"nms_type":    "per-class",
	})
}

// Models handles GET /models.
func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"available_models": []ModelInfo{
			{
				Name:     "YOLOv8",
				Endpoint: "/yolo",
				Loaded:   h.yolov8 != nil && h.yolov8.Loaded(),
				Type:     "closed-set",
				Classes:  "80",
			},
			{
				Name:     "YOLOv11",
				Endpoint: "/yolo11",
				Loaded:   h.yolov11 != nil && h.yolov11.Loaded(),
				Type:     "closed-set",
				Classes:  "80",
			},
			{
				Name:     "Grounding DINO",
				Endpoint: "/grounding-dino",
				Loaded:   h.dino != nil && h.dino.Loaded(),
				Type:     "open-world",
				Classes:  "unlimited (text prompt)",
			},
		},
		"features": []string{"Per-Class NMS for multi-class detection"},
	})
}
