package layout

import "strings"

// Wrap breaks text into lines no wider than maxWidth using greedy line breaking.
// Each "\n"-separated line is wrapped independently; blank lines are kept as
// empty strings. A single word wider than maxWidth sits alone on its line.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string

	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if measure(candidate) <= maxWidth {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}

	return lines
}

// Clamp truncates lines to at most max entries, marking the cut with an ellipsis.
func Clamp(lines []string, max int) []string {
	if max <= 0 || len(lines) <= max {
		return lines
	}
	out := append([]string(nil), lines[:max]...)
	out[max-1] = strings.TrimRight(out[max-1], " ") + "…"
	return out
}
