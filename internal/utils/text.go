package contextutils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// CollapseWhitespace squeezes runs of spaces and tabs to one space, trims
// every line and keeps at most one blank line between paragraphs.
func CollapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = multiSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// TruncateRunes cuts s to at most limit runes. A non-positive limit returns
// s unchanged.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// TruncateWithMarker cuts s to limit runes and appends marker when it had to cut.
func TruncateWithMarker(s string, limit int, marker string) string {
	cut := TruncateRunes(s, limit)
	if cut == s {
		return s
	}
	return strings.TrimSpace(cut) + marker
}
