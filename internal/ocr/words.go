package ocr

import (
	"errors"
	"strings"
)

// ErrOCRNotEnabled is returned when OCR support was not compiled in.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

const (
	DefaultLanguage      = "eng"
	DefaultMinConfidence = 0.5
)

// Options configures recognition.
type Options struct {
	// Language is a Tesseract language spec such as "eng" or "eng+fra".
	Language string
	// MinConfidence in [0,1]; words below it are dropped.
	MinConfidence float64
}

// DefaultOptions returns English recognition at the default confidence.
func DefaultOptions() Options {
	return Options{Language: DefaultLanguage, MinConfidence: DefaultMinConfidence}
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = DefaultMinConfidence
	}
	return o
}

// Word is one recognized word and its confidence in [0,1].
type Word struct {
	Text       string
	Confidence float64
}

// Confident returns the non-blank words whose confidence is at least min,
// in input order.
func Confident(words []Word, min float64) []string {
	var out []string
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence < min {
			continue
		}
		out = append(out, text)
	}
	return out
}
