package groundingdino

import "strings"

// FallbackLabel is assigned when a detection carries no usable label
// hint and the prompt produced no classes to fall back on.
const FallbackLabel = "detected_object"

// LabelHint is one raw per-detection class signal from the model's
// auxiliary "labels" output. Depending on the transformers version the
// model was exported from, the field holds either a string label or an
// integer class index, so both forms are carried explicitly.
type LabelHint struct {
	// Text is the string form of the hint, if the model emitted one.
	Text string
	// Index is the integer class index, valid only when IsIndex is set.
	Index int
	// IsIndex reports whether Index carries a value.
	IsIndex bool
}

// ClassCounter tracks, for one detection batch, how many detections
// have already resolved to each prompt class. It backs the fallback
// heuristic that spreads unlabeled detections evenly across requested
// classes instead of biasing toward one of them.
//
// A counter is request-local: create one per batch and discard it.
type ClassCounter struct {
	counts map[string]int
	// order preserves first-seen prompt order for deterministic
	// tie-breaking; map iteration order would not be stable.
	order []string
}

// NewClassCounter creates a counter seeded with zero counts for every
// prompt class, in prompt order.
func NewClassCounter(classes []string) *ClassCounter {
	c := &ClassCounter{
		counts: make(map[string]int, len(classes)),
		order:  make([]string, 0, len(classes)),
	}
	for _, class := range classes {
		if _, seen := c.counts[class]; !seen {
			c.counts[class] = 0
			c.order = append(c.order, class)
		}
	}
	return c
}

// Increment bumps the running count for label if it is a prompt class.
// Labels outside the prompt vocabulary are ignored so that free-text
// hints the prompt never asked for do not skew the fallback heuristic.
func (c *ClassCounter) Increment(label string) {
	if _, ok := c.counts[label]; ok {
		c.counts[label]++
	}
}

// Rarest returns the prompt class with the lowest running count, ties
// broken by prompt order. The second return is false when the counter
// tracks no classes at all.
func (c *ClassCounter) Rarest() (string, bool) {
	if len(c.order) == 0 {
		return "", false
	}
	best := c.order[0]
	for _, class := range c.order[1:] {
		if c.counts[class] < c.counts[best] {
			best = class
		}
	}
	return best, true
}

// ResolveLabel determines the class label for one raw detection.
//
// The resolution chain, first success wins:
//  1. A non-empty trimmed text label is used verbatim. It is trusted
//     even when it is not a prompt class, because the model may echo
//     back normalized sub-phrases of the prompt.
//  2. A non-empty string form of the auxiliary hint is used trimmed.
//  3. An in-range integer hint indexes into classes.
//  4. An out-of-range integer hint wraps modulo len(classes).
//  5. Otherwise the prompt class with the fewest resolutions so far is
//     chosen (ties broken by prompt order), or FallbackLabel when the
//     prompt produced no classes.
//
// Detections must be resolved in model output order: the counter's
// running counts make the fallback order-sensitive.
//
// Arguments:
//   - text: The free-text label for this detection, possibly empty.
//   - hint: The auxiliary label hint for this detection.
//   - classes: The prompt classes, in prompt order.
//   - counter: The batch's running counter. Updated in place.
//
// Returns:
//   - The resolved label. Resolution never fails; the worst case is
//     FallbackLabel.
func ResolveLabel(text string, hint LabelHint, classes []string, counter *ClassCounter) string {
	label := resolve(text, hint, classes, counter)
	counter.Increment(label)
	return label
}

func resolve(text string, hint LabelHint, classes []string, counter *ClassCounter) string {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return trimmed
	}

	if trimmed := strings.TrimSpace(hint.Text); trimmed != "" {
		return trimmed
	}

	if hint.IsIndex && len(classes) > 0 {
		idx := hint.Index
		if idx < 0 || idx >= len(classes) {
			// Wrap out-of-range indices instead of failing; keep the
			// wrap non-negative for negative indices.
			idx = ((idx % len(classes)) + len(classes)) % len(classes)
		}
		return classes[idx]
	}

	if rarest, ok := counter.Rarest(); ok {
		return rarest
	}
	return FallbackLabel
}
