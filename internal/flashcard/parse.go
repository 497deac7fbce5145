package flashcard

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseStatus tags how a model response was parsed.
type ParseStatus int

const (
	// ParseEmpty means no JSON array could be recovered.
	ParseEmpty ParseStatus = iota
	// ParseDirect means the whole response was a JSON array.
	ParseDirect
	// ParseBracketed means the first [...] span of the response was a JSON array.
	ParseBracketed
)

func (s ParseStatus) String() string {
	switch s {
	case ParseDirect:
		return "direct"
	case ParseBracketed:
		return "bracketed"
	default:
		return "empty"
	}
}

// ParseResult holds the string elements recovered from a response.
// NonStrings counts array elements that were not strings.
type ParseResult struct {
	Items      []string
	NonStrings int
	Status     ParseStatus
}

var (
	jsonArray       = regexp.MustCompile(`(?s)\[.*?\]`)
	genericQuestion = regexp.MustCompile(`(?i)^question\s*\d+\?$`)
)

// ParseQuestionList recovers a JSON array of strings from a model response.
// It tries the whole response first, then the first bracketed span.
func ParseQuestionList(text string) ParseResult {
	text = strings.TrimSpace(text)
	if r, ok := decodeArray(text); ok {
		r.Status = ParseDirect
		return r
	}
	if m := jsonArray.FindString(text); m != "" {
		if r, ok := decodeArray(m); ok {
			r.Status = ParseBracketed
			return r
		}
	}
	return ParseResult{Status: ParseEmpty}
}

func decodeArray(s string) (ParseResult, bool) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return ParseResult{}, false
	}
	var r ParseResult
	for _, el := range raw {
		var str string
		if string(el) == "null" {
			r.NonStrings++
			continue
		}
		if err := json.Unmarshal(el, &str); err != nil {
			r.NonStrings++
			continue
		}
		r.Items = append(r.Items, str)
	}
	return r, true
}

// IsGenericQuestion reports whether q is a template echo like "Question 1?".
func IsGenericQuestion(q string) bool {
	return genericQuestion.MatchString(strings.TrimSpace(q))
}

// cleanCandidate strips whitespace and surrounding quote characters.
func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "'")
	return s
}
