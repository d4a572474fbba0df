// Package yolo - postprocess YOLO model outputs.
package yolo

import (
	"image"

	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// PostProcess decodes raw YOLO output rows into labeled detections.
//
// Each row is [cx, cy, w, h, objectness, 80 class scores] in
// coordinates normalized to the model input. Rows below the confidence
// threshold are dropped, boxes are scaled to the original image and
// clamped to its bounds, and class-agnostic greedy NMS is applied.
//
// Arguments:
//   - output: Flattened row-major model output.
//   - originalSize: The original image dimensions in pixels.
//   - confThreshold: Minimum objectness * class score to keep a row.
//   - iouThreshold: IoU threshold for NMS.
//
// Returns:
//   - A slice of postprocessed results.
func PostProcess(output []float32, originalSize image.Point, confThreshold, iouThreshold float32) []postprocess.Result {
	const numCols = 85
	if len(output)%numCols != 0 {
		return nil
	}

	numRows := len(output) / numCols
	results := make([]postprocess.Result, 0, numRows)

	for i := 0; i < numRows; i++ {
		offset := i * numCols
		objConf := output[offset+4]
		if objConf < confThreshold {
			continue
		}

		classID := 0
		maxScore := float32(0)
		for j := 5; j < numCols; j++ {
			score := output[offset+j]
			if score > maxScore {
				maxScore = score
				classID = j - 5
			}
		}

		finalScore := objConf * maxScore
		if finalScore < confThreshold {
			continue
		}

		w := output[offset+2]
		h := output[offset+3]
		fw := float32(originalSize.X)
		fh := float32(originalSize.Y)

		results = append(results, postprocess.Result{
			Box: images.Rect{
				X1: math32.Max(0, (output[offset+0]-w/2)*fw),
				Y1: math32.Max(0, (output[offset+1]-h/2)*fh),
				X2: math32.Min(fw, (output[offset+0]+w/2)*fw),
				Y2: math32.Min(fh, (output[offset+1]+h/2)*fh),
			},
			Score: finalScore,
			Label: ClassName(classID),
		})
	}

	return postprocess.ApplyNMS(results, &postprocess.NMSConfig{
		IoUThreshold: iouThreshold,
		ClassAware:   false,
	})
}
