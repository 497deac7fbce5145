// Package textproc cleans raw text, splits it into sentences and filters
// low-value segments before generation.
package textproc

import "regexp"

var (
	// procedural matches instructions that open with a transition word and a comma ("First, ...", "Click, ...").
	procedural  = regexp.MustCompile(`(?i)^\s*(first|next|then|click|select|enter|type)\s*,`)
	boilerplate = regexp.MustCompile(`(?i)copyright|all rights reserved|privacy policy`)

	pageNumber       = regexp.MustCompile(`(?i)^page \d+$`)
	standaloneNumber = regexp.MustCompile(`^\d+$`)

	nonWordChars = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?'-]`)
	whitespace   = regexp.MustCompile(`\s+`)

	sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)
)

// IsProcedural reports whether text reads like a step in a set of instructions.
func IsProcedural(text string) bool {
	return procedural.MatchString(text)
}

// IsBoilerplate reports whether text contains copyright or policy boilerplate.
func IsBoilerplate(text string) bool {
	return boilerplate.MatchString(text)
}

// IsPageNumber reports whether a line is a header/footer page marker.
func IsPageNumber(line string) bool {
	return pageNumber.MatchString(line) || standaloneNumber.MatchString(line)
}
