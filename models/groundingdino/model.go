package groundingdino

import (
	"context"
	"image"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
)

// ErrNotLoaded is returned by Detect when the session has no model
// loaded. Callers treat it as "answer in demo mode", not as a failure.
var ErrNotLoaded = errors.New("grounding dino model not loaded")

// ImageNet normalization constants applied to the pixel tensor.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Special token ids of the BERT vocabulary the export was traced with.
const (
	tokenCLS = 101
	tokenSEP = 102
)

// Config configures the Grounding DINO session.
type Config struct {
	// Path is the ONNX export of the model.
	Path string
	// LibraryPath overrides the ONNX Runtime shared library location.
	// Empty selects a platform default.
	LibraryPath string
	// InputWidth and InputHeight are the pixel tensor resolution.
	// Defaults to 800x800, the resolution grounding-dino-tiny was
	// exported with.
	InputWidth  int
	InputHeight int
}

// Session wraps an ONNX Runtime session for Grounding DINO. A zero
// Session is valid and permanently unloaded, which is how the server
// degrades to demo mode when the model cannot be initialized.
type Session struct {
	mu      sync.RWMutex
	config  Config
	session *ort.DynamicAdvancedSession
	loaded  bool
}

var _ model.Session = (*Session)(nil)

var ortInit sync.Once

// NewSession loads the Grounding DINO ONNX export.
//
// Arguments:
//   - config: The session configuration.
//
// Returns:
//   - *Session: The loaded session.
//   - error: An error if the weights or the ONNX Runtime shared library
//     are unavailable. Callers may keep serving with a zero Session.
func NewSession(config Config) (*Session, error) {
	if config.InputWidth == 0 {
		config.InputWidth = 800
	}
	if config.InputHeight == 0 {
		config.InputHeight = 800
	}

	if _, err := os.Stat(config.Path); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", config.Path)
	}

	libPath := config.LibraryPath
	if libPath == "" {
		libPath = sharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	var initErr error
	ortInit.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, errors.Wrap(initErr, "error initializing ORT environment")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(4)
	options.SetInterOpNumThreads(2)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewDynamicAdvancedSession(
		config.Path,
		[]string{"pixel_values", "input_ids"},
		[]string{"boxes", "scores", "labels"},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &Session{config: config, session: session, loaded: true}, nil
}

// Name identifies the backend.
func (s *Session) Name() model.Name {
	return model.ModelNameGroundingDINO
}

// Loaded reports whether the session can answer detection requests.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Close releases the ORT session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	s.loaded = false
	return nil
}

// Detect runs open-vocabulary detection for one image and canonical
// query, returning the raw boxes, scores and label hints above the box
// threshold. Boxes come back in absolute pixel corners of the original
// image; the export emits integer class indices only, so TextLabels is
// left nil and label resolution falls to the index and fallback paths.
//
// Arguments:
//   - ctx: Context for cancellation.
//   - img: The decoded request image.
//   - query: The canonical query from NormalizePrompt, sent verbatim.
//   - boxThreshold: Minimum confidence for a raw detection.
//
// Returns:
//   - RawOutput: The raw detection batch.
//   - error: ErrNotLoaded when no model is loaded, or an inference
//     error.
func (s *Session) Detect(ctx context.Context, img *images.Image, query string, boxThreshold float32) (RawOutput, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.loaded || s.session == nil {
		return RawOutput{}, ErrNotLoaded
	}

	select {
	case <-ctx.Done():
		return RawOutput{}, ctx.Err()
	default:
	}

	pixelTensor, err := s.pixelTensor(img.Pixels)
	if err != nil {
		return RawOutput{}, err
	}
	defer pixelTensor.Destroy()

	tokenTensor, err := tokenTensor(query)
	if err != nil {
		return RawOutput{}, err
	}
	defer tokenTensor.Destroy()

	outputs := make([]ort.Value, 3)
	if err := s.session.Run([]ort.Value{pixelTensor, tokenTensor}, outputs); err != nil {
		return RawOutput{}, errors.Wrap(err, "failed to run inference")
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	return collectOutput(outputs, img.Width, img.Height, boxThreshold)
}

// pixelTensor converts the image to a normalized CHW float32 tensor at
// the model's input resolution.
func (s *Session) pixelTensor(img image.Image) (*ort.Tensor[float32], error) {
	w := s.config.InputWidth
	h := s.config.InputHeight
	resized := images.ResizeForModel(img, w, h)

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			data[0*h*w+y*w+x] = (float32(r>>8)/255.0 - imagenetMean[0]) / imagenetStd[0]
			data[1*h*w+y*w+x] = (float32(g>>8)/255.0 - imagenetMean[1]) / imagenetStd[1]
			data[2*h*w+y*w+x] = (float32(b>>8)/255.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}

	tensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating pixel tensor")
	}
	return tensor, nil
}

// tokenTensor encodes the canonical query for the text branch. The
// export bakes in its own wordpiece lookup table, so the host side only
// frames the raw byte sequence with the CLS/SEP special tokens.
func tokenTensor(query string) (*ort.Tensor[int64], error) {
	ids := make([]int64, 0, len(query)+2)
	ids = append(ids, tokenCLS)
	for _, b := range []byte(query) {
		ids = append(ids, int64(b))
	}
	ids = append(ids, tokenSEP)

	tensor, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
	if err != nil {
		return nil, errors.Wrap(err, "error creating token tensor")
	}
	return tensor, nil
}

// collectOutput converts the raw output tensors into plain slices,
// scaling normalized cxcywh boxes to absolute pixel corners and
// filtering by the box threshold.
func collectOutput(outputs []ort.Value, imgWidth, imgHeight int, boxThreshold float32) (RawOutput, error) {
	boxTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return RawOutput{}, errors.New("unexpected type for boxes output")
	}
	scoreTensor, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return RawOutput{}, errors.New("unexpected type for scores output")
	}
	labelTensor, ok := outputs[2].(*ort.Tensor[int64])
	if !ok {
		return RawOutput{}, errors.New("unexpected type for labels output")
	}

	boxes := boxTensor.GetData()
	scores := scoreTensor.GetData()
	labels := labelTensor.GetData()

	out := RawOutput{}
	for i := 0; i < len(scores) && (i+1)*4 <= len(boxes); i++ {
		if scores[i] < boxThreshold {
			continue
		}

		cx := boxes[i*4+0] * float32(imgWidth)
		cy := boxes[i*4+1] * float32(imgHeight)
		bw := boxes[i*4+2] * float32(imgWidth)
		bh := boxes[i*4+3] * float32(imgHeight)

		out.Boxes = append(out.Boxes, []float32{cx - bw/2, cy - bh/2, cx + bw/2, cy + bh/2})
		out.Scores = append(out.Scores, scores[i])
		if i < len(labels) {
			out.Labels = append(out.Labels, LabelHint{Index: int(labels[i]), IsIndex: true})
		} else {
			out.Labels = append(out.Labels, LabelHint{})
		}
	}
	return out, nil
}

// sharedLibPath returns the default ONNX Runtime shared library location
// for the current platform.
func sharedLibPath() string {
	if runtime.GOOS == "windows" {
		return "./third_party/onnxruntime.dll"
	}
	if runtime.GOOS == "darwin" {
		return "./third_party/libonnxruntime.dylib"
	}
	if runtime.GOARCH == "arm64" {
		return "./third_party/onnxruntime_arm64.so"
	}
	return "./third_party/onnxruntime.so"
}
