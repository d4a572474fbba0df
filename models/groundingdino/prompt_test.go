package groundingdino

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizePromptDelimiterPrecedence validates the documented split
// precedence: periods win over commas, commas win over whitespace, and
// undelimited text is a single class.
func TestNormalizePromptDelimiterPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		canonical string
		classes   []string
	}{
		{
			name:      "period delimited",
			raw:       "car . person",
			canonical: "car. person.",
			classes:   []string{"car", "person"},
		},
		{
			name:      "comma delimited",
			raw:       "car, person",
			canonical: "car. person.",
			classes:   []string{"car", "person"},
		},
		{
			name:      "no delimiter is a single class",
			raw:       "car person",
			canonical: "car person.",
			classes:   []string{"car person"},
		},
		{
			name:      "already canonical",
			raw:       "car. person.",
			canonical: "car. person.",
			classes:   []string{"car", "person"},
		},
		{
			name:      "period wins over comma",
			raw:       "car, truck . person",
			canonical: "car, truck. person.",
			classes:   []string{"car, truck", "person"},
		},
		{
			name:      "single class",
			raw:       "  dog  ",
			canonical: "dog.",
			classes:   []string{"dog"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, classes := NormalizePrompt(tt.raw)
			assert.Equal(t, tt.canonical, canonical, "canonical query should match")
			assert.Equal(t, tt.classes, classes, "class list should match")
		})
	}
}

// TestNormalizePromptEmptyInputs validates that empty and
// whitespace-only prompts normalize to the empty result rather than
// erroring.
func TestNormalizePromptEmptyInputs(t *testing.T) {
	for _, raw := range []string{"", "   ", " . . ", ",,,", "\t\n"} {
		canonical, classes := NormalizePrompt(raw)
		assert.Empty(t, canonical, "canonical query should be empty for %q", raw)
		assert.Empty(t, classes, "class list should be empty for %q", raw)
	}
}

// TestNormalizePromptIdempotent validates that normalizing a canonical
// query returns the same canonical query and classes.
func TestNormalizePromptIdempotent(t *testing.T) {
	canonical, classes := NormalizePrompt("car, person, dog")

	again, againClasses := NormalizePrompt(canonical)
	assert.Equal(t, canonical, again, "normalization should be idempotent on its own output")
	assert.Equal(t, classes, againClasses, "classes should survive re-normalization")
}

// TestNormalizePromptPreservesDuplicates validates that duplicate
// classes are preserved with their order and multiplicity.
func TestNormalizePromptPreservesDuplicates(t *testing.T) {
	canonical, classes := NormalizePrompt("car. person. car.")
	assert.Equal(t, "car. person. car.", canonical)
	assert.Equal(t, []string{"car", "person", "car"}, classes, "duplicates are not deduplicated")
}
