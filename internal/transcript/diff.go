package transcript

import "strings"

// diffLines produces a unified-style annotation of the lines that changed
// between prev and next. It trims the common prefix and suffix and marks the
// middle as removed/added, which is enough for debugging what a cycle
// rewrote without a full LCS pass.
func diffLines(prev, next string) string {
	if prev == next {
		return ""
	}

	a := strings.Split(prev, "\n")
	b := strings.Split(next, "\n")

	// Common prefix.
	start := 0
	for start < len(a) && start < len(b) && a[start] == b[start] {
		start++
	}
	// Common suffix, not overlapping the prefix.
	endA, endB := len(a), len(b)
	for endA > start && endB > start && a[endA-1] == b[endB-1] {
		endA--
		endB--
	}

	var sb strings.Builder
	sb.WriteString("--- previous\n+++ updated\n")
	for _, line := range a[start:endA] {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, line := range b[start:endB] {
		sb.WriteString("+ ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}
