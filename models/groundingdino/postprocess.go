// Package groundingdino - postprocess Grounding DINO model outputs.
package groundingdino

import (
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// RawOutput carries one batch of raw Grounding DINO output across the
// inference boundary as plain parallel slices. Tensor conversion happens
// in the session before this point; the pipeline only ever sees plain
// numeric data.
type RawOutput struct {
	// Boxes holds one [x1, y1, x2, y2] box per detection, in absolute
	// pixel coordinates. A row of the wrong length marks a malformed
	// record.
	Boxes [][]float32
	// Scores holds one confidence in [0,1] per detection.
	Scores []float32
	// TextLabels holds the free-text label per detection. May be nil or
	// shorter than Boxes when the model did not emit text labels.
	TextLabels []string
	// Labels holds the auxiliary label hint per detection. May be nil or
	// shorter than Boxes.
	Labels []LabelHint
}

// PostProcess resolves labels for one batch of raw model output and
// applies per-class Non-Maximum Suppression.
//
// Detections are resolved in model output order with one fresh
// ClassCounter per batch. Records whose box does not have exactly four
// coordinates are skipped silently; one malformed upstream record must
// not fail the batch. The survivors come back in model output order.
//
// Arguments:
//   - out: The raw model output batch.
//   - classes: The prompt classes from NormalizePrompt. When empty, the
//     batch is dropped entirely: no classes were requested.
//   - iouThreshold: IoU threshold for per-class NMS.
//
// Returns:
//   - The filtered, labeled detections.
func PostProcess(out RawOutput, classes []string, iouThreshold float32) []postprocess.Result {
	if len(classes) == 0 {
		return nil
	}

	counter := NewClassCounter(classes)
	results := make([]postprocess.Result, 0, len(out.Boxes))

	for i, box := range out.Boxes {
		if len(box) != 4 || i >= len(out.Scores) {
			continue
		}

		var text string
		if i < len(out.TextLabels) {
			text = out.TextLabels[i]
		}
		var hint LabelHint
		if i < len(out.Labels) {
			hint = out.Labels[i]
		}

		results = append(results, postprocess.Result{
			Box: images.Rect{
				X1: box[0],
				Y1: box[1],
				X2: box[2],
				Y2: box[3],
			},
			Score: out.Scores[i],
			Label: ResolveLabel(text, hint, classes, counter),
		})
	}

	return postprocess.ApplyNMS(results, &postprocess.NMSConfig{
		IoUThreshold: iouThreshold,
		ClassAware:   true,
	})
}
