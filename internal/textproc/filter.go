package textproc

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinSegmentLength is the shortest segment worth generating from.
const DefaultMinSegmentLength = 50

// FilterSegments drops segments shorter than minLength characters after
// trimming, and segments that look procedural or like boilerplate.
// Order is preserved and survivors are returned trimmed.
func FilterSegments(segments []string, minLength int) []string {
	if minLength <= 0 {
		minLength = DefaultMinSegmentLength
	}
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		s := strings.TrimSpace(seg)
		if utf8.RuneCountInString(s) < minLength {
			continue
		}
		if IsProcedural(s) || IsBoilerplate(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}
