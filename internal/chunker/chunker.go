// Package chunker groups sentences into overlapping, word-budgeted chunks.
package chunker

import (
	"math"
	"strings"

	"github.com/rcliao/flashcards/internal/model"
)

const (
	DefaultTargetWords  = 220
	DefaultOverlapRatio = 0.2
)

// Options configures chunking behavior.
type Options struct {
	TargetWords  int
	OverlapRatio float64
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetWords:  DefaultTargetWords,
		OverlapRatio: DefaultOverlapRatio,
	}
}

// Build groups sentences into chunks of roughly opts.TargetWords words.
// Each chunk after the first starts with the trailing sentences of its
// predecessor (at least one, about OverlapRatio of the group). Word counts
// use plain whitespace splitting.
func Build(sentences []string, opts Options) []model.Chunk {
	if opts.TargetWords <= 0 {
		opts.TargetWords = DefaultTargetWords
	}
	if opts.OverlapRatio < 0 || opts.OverlapRatio >= 1 {
		opts.OverlapRatio = DefaultOverlapRatio
	}

	n := len(sentences)
	if n == 0 {
		return nil
	}

	var chunks []model.Chunk
	idx := 0
	for idx < n {
		start := idx
		words := 0
		for idx < n && words < opts.TargetWords {
			words += len(strings.Fields(sentences[idx]))
			idx++
		}
		group := idx - start
		if group == 0 {
			break
		}

		chunks = append(chunks, model.Chunk{
			Seq:       len(chunks),
			Text:      strings.TrimSpace(strings.Join(sentences[start:idx], " ")),
			Sentences: group,
			Words:     words,
			First:     start,
		})

		if idx >= n {
			break
		}

		overlap := int(math.Max(1, math.Floor(float64(group)*opts.OverlapRatio)))
		idx -= overlap
		if idx < 0 {
			idx = 0
		}
		// Single-sentence groups would otherwise restart at the same place.
		if overlap >= group {
			idx++
		}
	}

	return chunks
}

// Texts returns the text of each chunk in order.
func Texts(chunks []model.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}
