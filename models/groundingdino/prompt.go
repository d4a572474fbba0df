// Package groundingdino - Open-vocabulary detection via Grounding DINO.
package groundingdino

import "strings"

// NormalizePrompt turns a free-text class prompt into the canonical
// query string Grounding DINO expects, plus the ordered class list the
// rest of the pipeline resolves labels against.
//
// The model's prompt grammar requires every class to end with a period,
// so "car . person", "car, person" and "car. person." all normalize to
// the same canonical form. Splitting precedence is period first, then
// comma, else the whole trimmed text is a single class. Fragments are
// trimmed and empty fragments dropped; duplicates and order are
// preserved as given.
//
// Arguments:
//   - raw: Arbitrary prompt text, possibly empty or whitespace-only.
//
// Returns:
//   - The canonical query, e.g. "car. person.". Byte-exact, since it is
//     re-sent to the model verbatim.
//   - The ordered class list, e.g. ["car", "person"]. Both returns are
//     empty when no non-empty class remains, which signals "no detection
//     requested" rather than an error.
func NormalizePrompt(raw string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	var fragments []string
	switch {
	case strings.Contains(raw, "."):
		fragments = strings.Split(raw, ".")
	case strings.Contains(raw, ","):
		fragments = strings.Split(raw, ",")
	default:
		fragments = []string{raw}
	}

	classes := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if trimmed := strings.TrimSpace(fragment); trimmed != "" {
			classes = append(classes, trimmed)
		}
	}

	if len(classes) == 0 {
		return "", nil
	}

	return strings.Join(classes, ". ") + ".", classes
}
