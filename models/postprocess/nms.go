// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float32 // Overlap threshold for suppression.
	ClassAware   bool    // If true, suppress only within the same label.
}

// ApplyNMS filters overlapping detections using Non-Maximum Suppression.
//
// When config.ClassAware is set, suppression runs independently per
// label, so a box can never suppress a box of a different class. When it
// is not set, all detections compete in a single pool.
//
// Arguments:
//   - detections: Slice of detections in model output order. The input
//     does not need to be score-sorted.
//   - config: NMS configuration.
//
// Returns:
//   - The surviving detections as a stable subsequence of the input:
//     original relative order is preserved. Returns nil for empty input.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	var kept []int
	if config.ClassAware {
		kept = suppressPerLabel(detections, config.IoUThreshold)
	} else {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		kept = suppressGroup(detections, all, config.IoUThreshold)
	}

	// Restore original detection order. Downstream consumers expect
	// input-order output, not grouped output.
	sort.Ints(kept)

	filtered := make([]Result, 0, len(kept))
	for _, idx := range kept {
		filtered = append(filtered, detections[idx])
	}
	return filtered
}

// suppressPerLabel partitions detections by label and runs greedy
// suppression within each partition. Partitions never interact, which is
// what prevents cross-class suppression.
func suppressPerLabel(detections []Result, iouThreshold float32) []int {
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, det := range detections {
		if _, seen := groups[det.Label]; !seen {
			order = append(order, det.Label)
		}
		groups[det.Label] = append(groups[det.Label], i)
	}

	kept := make([]int, 0, len(detections))
	for _, label := range order {
		kept = append(kept, suppressGroup(detections, groups[label], iouThreshold)...)
	}
	return kept
}

// suppressGroup performs standard greedy Non-Maximum Suppression over
// the detections referenced by indices.
//
// The group is visited in descending score order; each surviving anchor
// suppresses every remaining box whose IoU with it is strictly greater
// than the threshold. A threshold of 1 therefore suppresses nothing,
// because IoU never exceeds 1.
//
// Arguments:
//   - detections: The full detection slice.
//   - indices: Original indices of the group members.
//   - iouThreshold: IoU threshold above which overlapping boxes are suppressed.
//
// Returns:
//   - The original indices of the kept boxes.
func suppressGroup(detections []Result, indices []int, iouThreshold float32) []int {
	n := len(indices)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{indices[0]}
	}

	// Stable sort keeps ties in original detection order.
	sorted := make([]int, n)
	copy(sorted, indices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return detections[sorted[i]].Score > detections[sorted[j]].Score
	})

	kept := make([]int, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[sorted[i]]
		kept = append(kept, sorted[i])
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[sorted[j]].Box) > iouThreshold {
				used[j] = true
			}
		}
	}

	return kept
}
