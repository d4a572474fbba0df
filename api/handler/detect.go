// Package handler - HTTP handlers for the detection API.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/groundingdino"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/util"
)

// OpenVocabDetector is the open-vocabulary inference collaborator: it
// takes a canonical text query and yields raw, possibly partially
// labeled detections.
type OpenVocabDetector interface {
	Detect(ctx context.Context, img *images.Image, query string, boxThreshold float32) (groundingdino.RawOutput, error)
	Loaded() bool
}

// ClosedSetDetector is the closed-set (COCO-80) inference collaborator.
type ClosedSetDetector interface {
	Detect(ctx context.Context, data []byte, confThreshold, iouThreshold float32) ([]postprocess.Result, error)
	Loaded() bool
}

// Handler serves the detection endpoints. Model sessions are injected so
// no handler ever touches process-wide model state.
type Handler struct {
	cfg     *config.Config
	dino    OpenVocabDetector
	yolov8  ClosedSetDetector
	yolov11 ClosedSetDetector
}

// NewHandler builds the handler. Any detector may be nil or unloaded;
// the corresponding endpoint then answers in demo mode.
func NewHandler(cfg *config.Config, dino OpenVocabDetector, yolov8, yolov11 ClosedSetDetector) *Handler {
	return &Handler{
		cfg:     cfg,
		dino:    dino,
		yolov8:  yolov8,
		yolov11: yolov11,
	}
}

// GroundingDINORequest is the body of POST /grounding-dino. Threshold
// fields are pointers so that an omitted field falls back to the
// configured default while an explicit zero stays zero.
type GroundingDINORequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
	// BoxThreshold filters raw detections before the pipeline.
	BoxThreshold *float32 `json:"box_threshold"`
	// TextThreshold is accepted for wire compatibility with older
	// clients; the ONNX export bakes its text threshold in.
	TextThreshold *float32 `json:"text_threshold"`
	// NMSThreshold is the per-class NMS IoU threshold.
	NMSThreshold *float32 `json:"nms_threshold"`
}

// YOLORequest is the body of POST /yolo and POST /yolo11.
type YOLORequest struct {
	Image               string   `json:"image"`
	ConfidenceThreshold *float32 `json:"confidence_threshold"`
	IoUThreshold        *float32 `json:"iou_threshold"`
}

// Detection is one detection in a response, with the box as
// [x, y, width, height] in absolute pixels.
type Detection struct {
	BBox       [4]float32 `json:"bbox"`
	Label      string     `json:"label"`
	Confidence float32    `json:"confidence"`
}

// GroundingDINOResponse is the body of a successful /grounding-dino
// answer.
type GroundingDINOResponse struct {
	Detections   []Detection `json:"detections"`
	Prompt       string      `json:"prompt"`
	ImageSize    [2]int      `json:"image_size"`
	ModelMode    string      `json:"model_mode"`
	NMSApplied   bool        `json:"nms_applied"`
	NMSType      string      `json:"nms_type"`
	NMSThreshold float32     `json:"nms_threshold"`
}

// YOLOResponse is the body of a successful /yolo answer.
type YOLOResponse struct {
	Detections []Detection `json:"detections"`
	ImageSize  [2]int      `json:"image_size"`
	Model      string      `json:"model"`
}

// ErrorResponse is the body of any error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GroundingDINO handles POST /grounding-dino: open-vocabulary detection
// with per-class NMS.
func (h *Handler) GroundingDINO(c *gin.Context) {
	var req GroundingDINORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Image == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No text prompt provided"})
		return
	}

	img, err := images.DecodeBase64(req.Image)
	if err != nil {
		util.Logger.Warn("undecodable image payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image"})
		return
	}

	query, classes := groundingdino.NormalizePrompt(req.Prompt)
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid text prompt"})
		return
	}

	boxThreshold := orDefault(req.BoxThreshold, h.cfg.Thresholds.Box)
	nmsThreshold := orDefault(req.NMSThreshold, h.cfg.Thresholds.NMS)

	resp := GroundingDINOResponse{
		Detections:   []Detection{},
		Prompt:       req.Prompt,
		ImageSize:    [2]int{img.Width, img.Height},
		ModelMode:    "real",
		NMSApplied:   true,
		NMSType:      "per-class",
		NMSThreshold: nmsThreshold,
	}

	if h.dino == nil || !h.dino.Loaded() {
		resp.ModelMode = "demo"
		c.JSON(http.StatusOK, resp)
		return
	}

	out, err := h.dino.Detect(c.Request.Context(), img, query, boxThreshold)
	if err != nil {
		if errors.Is(err, groundingdino.ErrNotLoaded) {
			resp.ModelMode = "demo"
			c.JSON(http.StatusOK, resp)
			return
		}
		util.Logger.Error("grounding dino inference failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	results := groundingdino.PostProcess(out, classes, nmsThreshold)
	util.Logger.Info("grounding dino detection",
		zap.String("query", query),
		zap.Int("raw", len(out.Boxes)),
		zap.Int("kept", len(results)),
	)

	resp.Detections = toDetections(results)
	c.JSON(http.StatusOK, resp)
}

// YOLOv8 handles POST /yolo.
func (h *Handler) YOLOv8(c *gin.Context) {
	h.yolo(c, h.yolov8, "yolov8")
}

// YOLOv11 handles POST /yolo11.
func (h *Handler) YOLOv11(c *gin.Context) {
	h.yolo(c, h.yolov11, "yolov11")
}

func (h *Handler) yolo(c *gin.Context, detector ClosedSetDetector, name string) {
	var req YOLORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.Image == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No image provided"})
		return
	}

	img, err := images.DecodeBase64(req.Image)
	if err != nil {
		util.Logger.Warn("undecodable image payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid image"})
		return
	}

	resp := YOLOResponse{
		Detections: []Detection{},
		ImageSize:  [2]int{img.Width, img.Height},
		Model:      name,
	}

	if detector == nil || !detector.Loaded() {
		c.JSON(http.StatusOK, resp)
		return
	}

	results, err := detector.Detect(
		c.Request.Context(),
		img.Data,
		orDefault(req.ConfidenceThreshold, h.cfg.Thresholds.Confidence),
		orDefault(req.IoUThreshold, h.cfg.Thresholds.IoU),
	)
	if err != nil {
		util.Logger.Error("yolo inference failed", zap.String("model", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp.Detections = toDetections(results)
	c.JSON(http.StatusOK, resp)
}

// toDetections converts pipeline results to the wire shape, moving
// corner boxes to [x, y, width, height].
func toDetections(results []postprocess.Result) []Detection {
	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		detections = append(detections, Detection{
			BBox:       [4]float32{r.Box.X1, r.Box.Y1, r.Box.Width(), r.Box.Height()},
			Label:      r.Label,
			Confidence: r.Score,
		})
	}
	return detections
}

func orDefault(v *float32, def float32) float32 {
	if v == nil {
		return def
	}
	return *v
}
