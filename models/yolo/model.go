// Package yolo - Closed-set COCO-80 detection via the OpenCV DNN backend.
package yolo

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ErrNotLoaded is returned by Detect when the session has no model
// loaded.
var ErrNotLoaded = errors.New("yolo model not loaded")

// Config configures a YOLO session.
type Config struct {
	// Name distinguishes the YOLOv8 and YOLOv11 endpoints; both run
	// through the same backend.
	Name model.Name
	// Path is the ONNX export of the model.
	Path string
	// InputWidth and InputHeight are the model input resolution.
	// Defaults to 640x640.
	InputWidth  int
	InputHeight int
}

var _ model.Session = (*Session)(nil)

// Session wraps a gocv DNN net for a YOLO model. A zero Session is valid
// and permanently unloaded.
type Session struct {
	mu     sync.RWMutex
	config Config
	net    gocv.Net
	loaded bool
}

// NewSession loads a YOLO ONNX export into the OpenCV DNN backend.
//
// Arguments:
//   - config: The session configuration.
//
// Returns:
//   - *Session: The loaded session.
//   - error: An error if the model file is missing or unreadable.
func NewSession(config Config) (*Session, error) {
	if config.InputWidth == 0 {
		config.InputWidth = 640
	}
	if config.InputHeight == 0 {
		config.InputHeight = 640
	}

	if _, err := os.Stat(config.Path); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", config.Path)
	}

	net := gocv.ReadNet(config.Path, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load ONNX model: %s", config.Path)
	}

	net.SetPreferableBackend(gocv.NetBackendOpenCV)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Session{config: config, net: net, loaded: true}, nil
}

// Name identifies the backend.
func (s *Session) Name() model.Name {
	return s.config.Name
}

// Loaded reports whether the session can answer detection requests.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Close releases the DNN net.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.loaded = false
		return s.net.Close()
	}
	return nil
}

// Detect runs closed-set detection on raw image bytes.
//
// Arguments:
//   - ctx: Context for cancellation.
//   - data: Encoded image bytes (JPEG or PNG).
//   - confThreshold: Minimum confidence for a detection.
//   - iouThreshold: IoU threshold for class-agnostic NMS.
//
// Returns:
//   - The filtered detections with COCO-80 labels, in model output
//     order.
//   - error: ErrNotLoaded when no model is loaded, or a decode error.
func (s *Session) Detect(ctx context.Context, data []byte, confThreshold, iouThreshold float32) ([]postprocess.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded {
		return nil, ErrNotLoaded
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return nil, errors.New("failed to decode image for DNN input")
	}
	defer img.Close()

	inputShape := image.Pt(s.config.InputWidth, s.config.InputHeight)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, inputShape, 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	blob := gocv.BlobFromImage(resized, 1.0/255.0, inputShape, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	size := img.Size()
	return PostProcess(matRows(output), image.Pt(size[1], size[0]), confThreshold, iouThreshold), nil
}

// matRows flattens a 2D output Mat into row-major float32 values.
func matRows(output gocv.Mat) []float32 {
	rows := output.Rows()
	cols := output.Cols()
	data := make([]float32, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, output.GetFloatAt(i, j))
		}
	}
	return data
}
