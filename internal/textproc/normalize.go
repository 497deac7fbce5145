package textproc

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	Lowercase bool
}

// DefaultNormalizeOptions returns the options used by the pipeline.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{Lowercase: true}
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// Normalize strips markup, page markers and stray symbols from extracted
// text and collapses it onto a single line.
func Normalize(text string, opts NormalizeOptions) string {
	text = StripHTML(text)
	text = quoteReplacer.Replace(text)
	text = norm.NFKC.String(text)
	text = RemoveHeadersFooters(text)
	text = nonWordChars.ReplaceAllString(text, "")
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if opts.Lowercase {
		text = strings.ToLower(text)
	}
	return text
}

// StripHTML returns the text content of s with tags removed. Text that
// contains no markup is returned unchanged.
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String()
			}
			return s
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// RemoveHeadersFooters drops lines that are only page numbers.
func RemoveHeadersFooters(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsPageNumber(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// FilterLines drops procedural and boilerplate lines from raw text.
func FilterLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsProcedural(line) || IsBoilerplate(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
