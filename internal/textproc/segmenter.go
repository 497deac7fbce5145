package textproc

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/neurosnap/sentences/english"
)

// Splitter splits text into sentences.
type Splitter interface {
	Split(text string) ([]string, error)
}

// SplitterFunc adapts a function to the Splitter interface.
type SplitterFunc func(text string) ([]string, error)

func (f SplitterFunc) Split(text string) ([]string, error) { return f(text) }

// Segmenter splits text into sentences using a Punkt tokenizer, falling back
// to punctuation boundaries when the tokenizer can't be loaded or fails.
// The tokenizer is loaded on first use.
type Segmenter struct {
	logger *log.Logger
	load   func() (Splitter, error)

	once     sync.Once
	primary  Splitter
	loadErr  error
	warnOnce sync.Once
}

// NewSegmenter returns a Segmenter backed by the English Punkt model.
func NewSegmenter(logger *log.Logger) *Segmenter {
	return NewSegmenterWith(logger, loadPunkt)
}

// NewSegmenterWith returns a Segmenter whose primary splitter is produced by load.
// A nil load always uses the punctuation fallback.
func NewSegmenterWith(logger *log.Logger, load func() (Splitter, error)) *Segmenter {
	if load == nil {
		load = func() (Splitter, error) { return nil, errors.New("no sentence model configured") }
	}
	return &Segmenter{logger: logger, load: load}
}

// Segment returns the trimmed, non-empty sentences of text in order.
func (s *Segmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.once.Do(func() {
		s.primary, s.loadErr = s.load()
	})

	if s.loadErr == nil && s.primary != nil {
		out, err := s.primary.Split(text)
		if err == nil {
			return clean(out)
		}
		s.warn("sentence splitter failed, using punctuation fallback", err)
		return SplitOnPunctuation(text)
	}

	s.warn("sentence model unavailable, using punctuation fallback", s.loadErr)
	return SplitOnPunctuation(text)
}

func (s *Segmenter) warn(msg string, err error) {
	if s.logger == nil {
		return
	}
	s.warnOnce.Do(func() {
		s.logger.Warn(msg, "err", err)
	})
}

// SplitOnPunctuation splits after '.', '!' or '?' followed by whitespace.
func SplitOnPunctuation(text string) []string {
	var out []string
	last := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(text, -1) {
		out = append(out, text[last:m[0]+1])
		last = m[1]
	}
	out = append(out, text[last:])
	return clean(out)
}

func clean(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadPunkt() (Splitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return SplitterFunc(func(text string) (out []string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("punkt tokenizer panic: %v", r)
			}
		}()
		for _, sent := range tokenizer.Tokenize(text) {
			out = append(out, sent.Text)
		}
		return out, nil
	}), nil
}
