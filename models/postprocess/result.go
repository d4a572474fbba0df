// Package postprocess - Postprocessing utilities shared by detection models.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result in absolute pixel corners.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The resolved class label of the result.
	Label string
}
