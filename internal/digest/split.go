package digest

import "strings"

// SplitMessage segments text into fragments of at most max runes, breaking at
// line boundaries. A single line longer than max is hard-split at the rune
// limit. Fragments preserve line order; text at or under the limit comes back
// as a single fragment unchanged.
func SplitMessage(text string, max int) []string {
	if max <= 0 || len([]rune(text)) <= max {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, strings.TrimSpace(current.String()))
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		switch {
		case len(runes) > max:
			flush()
			for len(runes) > max {
				parts = append(parts, string(runes[:max]))
				runes = runes[max:]
			}
			if len(runes) > 0 {
				current.WriteString(string(runes))
				current.WriteByte('\n')
				currentLen = len(runes) + 1
			}
		case currentLen+len(runes)+1 <= max:
			current.WriteString(line)
			current.WriteByte('\n')
			currentLen += len(runes) + 1
		default:
			flush()
			current.WriteString(line)
			current.WriteByte('\n')
			currentLen = len(runes) + 1
		}
	}
	flush()

	return parts
}
