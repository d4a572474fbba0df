package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

func det(label string, score float32, x1, y1, x2, y2 float32) Result {
	return Result{
		Box:   images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Score: score,
		Label: label,
	}
}

// TestApplyNMSEmptyInput validates that an empty batch yields nil.
func TestApplyNMSEmptyInput(t *testing.T) {
	assert.Nil(t, ApplyNMS(nil, &NMSConfig{IoUThreshold: 0.5, ClassAware: true}))
	assert.Nil(t, ApplyNMS([]Result{}, &NMSConfig{IoUThreshold: 0.5, ClassAware: true}))
}

// TestApplyNMSSuppressesSameClassOverlap validates that within one
// class, the lower-scored of two heavily overlapping boxes is dropped.
func TestApplyNMSSuppressesSameClassOverlap(t *testing.T) {
	input := []Result{
		det("car", 0.9, 0, 0, 100, 100),
		det("car", 0.8, 10, 10, 110, 110), // IoU ~0.68 with the first
	}

	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})

	require.Len(t, filtered, 1)
	assert.Equal(t, float32(0.9), filtered[0].Score, "the higher-confidence box survives")
}

// TestApplyNMSCrossClassNonSuppression validates the defining property
// of per-class NMS: fully overlapping boxes with different labels never
// suppress each other.
func TestApplyNMSCrossClassNonSuppression(t *testing.T) {
	input := []Result{
		det("car", 0.9, 0, 0, 100, 100),
		det("person", 0.3, 0, 0, 100, 100), // identical box, different class
	}

	for _, threshold := range []float32{0, 0.25, 0.5, 0.99} {
		filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: threshold, ClassAware: true})
		assert.Len(t, filtered, 2, "both classes must survive at threshold %v", threshold)
	}

	// The same batch through class-agnostic NMS collapses to one box.
	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0.5, ClassAware: false})
	require.Len(t, filtered, 1)
	assert.Equal(t, "car", filtered[0].Label)
}

// TestApplyNMSPreservesInputOrder validates that survivors come back in
// original detection order, not grouped or score order.
func TestApplyNMSPreservesInputOrder(t *testing.T) {
	input := []Result{
		det("person", 0.5, 500, 500, 600, 600),
		det("car", 0.9, 0, 0, 100, 100),
		det("person", 0.95, 200, 200, 300, 300),
		det("car", 0.7, 300, 0, 400, 100),
	}

	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})

	// Nothing overlaps, so everything survives, in input order.
	require.Len(t, filtered, 4)
	assert.Equal(t, input, filtered, "disjoint boxes must pass through unchanged and ordered")
}

// TestApplyNMSOutputIsStableSubsequence validates the ordering guarantee
// on a batch where suppression does occur.
func TestApplyNMSOutputIsStableSubsequence(t *testing.T) {
	input := []Result{
		det("car", 0.6, 0, 0, 100, 100),
		det("person", 0.9, 200, 0, 300, 100),
		det("car", 0.95, 5, 5, 105, 105), // suppresses index 0
		det("person", 0.4, 400, 0, 500, 100),
	}

	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})

	require.Len(t, filtered, 3)
	assert.Equal(t, []Result{input[1], input[2], input[3]}, filtered,
		"survivors must appear in their original relative order")
}

// TestApplyNMSThresholdExtremes validates both ends of the threshold
// range: 1 disables suppression entirely while 0 suppresses any
// same-class overlap.
func TestApplyNMSThresholdExtremes(t *testing.T) {
	input := []Result{
		det("car", 0.9, 0, 0, 100, 100),
		det("car", 0.8, 0, 0, 100, 100), // exact duplicate, IoU = 1
		det("car", 0.7, 99, 99, 200, 200),
	}

	kept := ApplyNMS(input, &NMSConfig{IoUThreshold: 1, ClassAware: true})
	assert.Len(t, kept, 3, "threshold 1 keeps everything: the comparison is strict")

	kept = ApplyNMS(input, &NMSConfig{IoUThreshold: 0, ClassAware: true})
	require.Len(t, kept, 1, "threshold 0 suppresses any overlap at all")
	assert.Equal(t, float32(0.9), kept[0].Score)
}

// TestApplyNMSSingleBoxGroups validates that size-1 partitions are
// always kept untouched.
func TestApplyNMSSingleBoxGroups(t *testing.T) {
	input := []Result{
		det("car", 0.1, 0, 0, 10, 10),
		det("person", 0.2, 0, 0, 10, 10),
		det("dog", 0.3, 0, 0, 10, 10),
	}

	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0, ClassAware: true})
	assert.Equal(t, input, filtered, "one box per class means nothing can be suppressed")
}

// TestApplyNMSPairwiseIoUProperty validates that for any same-class pair
// of survivors, pairwise IoU never exceeds the threshold.
func TestApplyNMSPairwiseIoUProperty(t *testing.T) {
	// A deliberately messy batch: chains of partial overlaps.
	input := []Result{
		det("car", 0.9, 0, 0, 100, 100),
		det("car", 0.85, 40, 0, 140, 100),
		det("car", 0.8, 80, 0, 180, 100),
		det("car", 0.75, 120, 0, 220, 100),
		det("person", 0.7, 0, 0, 100, 100),
		det("person", 0.65, 30, 0, 130, 100),
	}

	const threshold = float32(0.3)
	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: threshold, ClassAware: true})

	for i := 0; i < len(filtered); i++ {
		for j := i + 1; j < len(filtered); j++ {
			if filtered[i].Label != filtered[j].Label {
				continue
			}
			iou := images.CalculateIoU(filtered[i].Box, filtered[j].Box)
			assert.LessOrEqual(t, iou, threshold,
				"same-class survivors %d and %d overlap beyond the threshold", i, j)
		}
	}
}

// TestApplyNMSTiedScoresStable validates that equal-confidence boxes
// keep their original relative priority.
func TestApplyNMSTiedScoresStable(t *testing.T) {
	input := []Result{
		det("car", 0.8, 0, 0, 100, 100),
		det("car", 0.8, 10, 10, 110, 110),
	}

	filtered := ApplyNMS(input, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})

	require.Len(t, filtered, 1)
	assert.Equal(t, input[0].Box, filtered[0].Box, "ties resolve to the earlier detection")
}
