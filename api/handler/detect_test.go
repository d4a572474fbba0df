package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/api/middleware"
	"github.com/nvr-ai/go-detect/config"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/groundingdino"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/util"
)

// stubOpenVocab serves a fixed raw batch and records the query it was
// asked for.
type stubOpenVocab struct {
	out    groundingdino.RawOutput
	loaded bool
	query  string
}

func (s *stubOpenVocab) Detect(_ context.Context, _ *images.Image, query string, _ float32) (groundingdino.RawOutput, error) {
	s.query = query
	return s.out, nil
}

func (s *stubOpenVocab) Loaded() bool { return s.loaded }

// stubClosedSet serves fixed results.
type stubClosedSet struct {
	results []postprocess.Result
	loaded  bool
}

func (s *stubClosedSet) Detect(_ context.Context, _ []byte, _, _ float32) ([]postprocess.Result, error) {
	return s.results, nil
}

func (s *stubClosedSet) Loaded() bool { return s.loaded }

func testRouter(t *testing.T, dino OpenVocabDetector, yolov8 ClosedSetDetector) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	require.NoError(t, util.InitLogger("release"))

	cfg := config.New()
	h := NewHandler(cfg, dino, yolov8, nil)

	r := gin.New()
	r.Use(middleware.CORS())
	r.GET("/health", h.Health)
	r.GET("/models", h.Models)
	r.POST("/grounding-dino", h.GroundingDINO)
	r.POST("/yolo", h.YOLOv8)
	return r
}

func testImageBase64(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 60, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestHealthEndpoint validates the health payload and per-model flags.
func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t, &stubOpenVocab{loaded: true}, &stubClosedSet{loaded: false})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string          `json:"status"`
		Models map[string]bool `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Models["grounding_dino"])
	assert.False(t, body.Models["yolov8"])
}

// TestGroundingDINOValidation validates the 400 paths: missing image,
// missing prompt, whitespace-only prompt, undecodable image.
func TestGroundingDINOValidation(t *testing.T) {
	r := testRouter(t, &stubOpenVocab{loaded: true}, nil)
	img := testImageBase64(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing image", map[string]any{"prompt": "car"}},
		{"missing prompt", map[string]any{"image": img}},
		{"whitespace prompt", map[string]any{"image": img, "prompt": " . . "}},
		{"bad image payload", map[string]any{"image": "!!not-base64", "prompt": "car"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/grounding-dino", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

// TestGroundingDINODetect validates the happy path through the full
// pipeline: normalization, label resolution, per-class NMS, and the
// xywh wire conversion.
func TestGroundingDINODetect(t *testing.T) {
	stub := &stubOpenVocab{
		loaded: true,
		out: groundingdino.RawOutput{
			Boxes: [][]float32{
				{0, 0, 100, 100},
				{10, 0, 110, 100},
				{200, 200, 300, 300},
			},
			Scores:     []float32{0.9, 0.8, 0.7},
			TextLabels: []string{"car", "car", "person"},
		},
	}
	r := testRouter(t, stub, nil)

	w := postJSON(r, "/grounding-dino", map[string]any{
		"image":         testImageBase64(t),
		"prompt":        "car . person",
		"nms_threshold": 0.5,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body GroundingDINOResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "car. person.", stub.query, "the canonical query is sent to the model")
	assert.Equal(t, "real", body.ModelMode)
	assert.Equal(t, [2]int{640, 480}, body.ImageSize)
	assert.Equal(t, "per-class", body.NMSType)

	require.Len(t, body.Detections, 2)
	assert.Equal(t, "car", body.Detections[0].Label)
	assert.Equal(t, [4]float32{0, 0, 100, 100}, body.Detections[0].BBox, "bbox is x,y,w,h")
	assert.Equal(t, "person", body.Detections[1].Label)
	assert.Equal(t, [4]float32{200, 200, 100, 100}, body.Detections[1].BBox)
}

// TestGroundingDINODemoMode validates that an unloaded backend answers
// 200 with an empty detection list instead of failing.
func TestGroundingDINODemoMode(t *testing.T) {
	r := testRouter(t, &stubOpenVocab{loaded: false}, nil)

	w := postJSON(r, "/grounding-dino", map[string]any{
		"image":  testImageBase64(t),
		"prompt": "car",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var body GroundingDINOResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "demo", body.ModelMode)
	assert.Empty(t, body.Detections)
}

// TestYOLODetect validates the closed-set endpoint shape.
func TestYOLODetect(t *testing.T) {
	stub := &stubClosedSet{
		loaded: true,
		results: []postprocess.Result{
			{Box: images.Rect{X1: 10, Y1: 20, X2: 60, Y2: 120}, Score: 0.8, Label: "person"},
		},
	}
	r := testRouter(t, nil, stub)

	w := postJSON(r, "/yolo", map[string]any{"image": testImageBase64(t)})

	require.Equal(t, http.StatusOK, w.Code)

	var body YOLOResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "yolov8", body.Model)
	require.Len(t, body.Detections, 1)
	assert.Equal(t, [4]float32{10, 20, 50, 100}, body.Detections[0].BBox)
}

// TestCORSPreflight validates that preflight requests succeed with the
// permissive headers the frontend depends on.
func TestCORSPreflight(t *testing.T) {
	r := testRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/grounding-dino", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
