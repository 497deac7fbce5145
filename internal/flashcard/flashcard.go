// Package flashcard turns text segments into validated question/answer
// pairs using a text generator.
package flashcard

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/model"
)

const (
	DefaultQuestionsPerSegment = 3
	DefaultMaxQuestionTokens   = 128
	DefaultMaxFallbackTokens   = 64
	DefaultMaxAnswerTokens     = 48
	DefaultMaxSummaryTokens    = 200
	DefaultBeams               = 4
	DefaultMinQuestionLength   = 5
	DefaultMinAnswerWords      = 2
	DefaultMaxAnswerWords      = 50
)

// Options configures generation quotas, decoding and quality gates.
type Options struct {
	QuestionsPerSegment int
	MaxQuestionTokens   int
	MaxFallbackTokens   int
	MaxAnswerTokens     int
	MaxSummaryTokens    int
	Beams               int
	MinQuestionLength   int
	MinAnswerWords      int
	MaxAnswerWords      int
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		QuestionsPerSegment: DefaultQuestionsPerSegment,
		MaxQuestionTokens:   DefaultMaxQuestionTokens,
		MaxFallbackTokens:   DefaultMaxFallbackTokens,
		MaxAnswerTokens:     DefaultMaxAnswerTokens,
		MaxSummaryTokens:    DefaultMaxSummaryTokens,
		Beams:               DefaultBeams,
		MinQuestionLength:   DefaultMinQuestionLength,
		MinAnswerWords:      DefaultMinAnswerWords,
		MaxAnswerWords:      DefaultMaxAnswerWords,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.QuestionsPerSegment <= 0 {
		o.QuestionsPerSegment = d.QuestionsPerSegment
	}
	if o.MaxQuestionTokens <= 0 {
		o.MaxQuestionTokens = d.MaxQuestionTokens
	}
	if o.MaxFallbackTokens <= 0 {
		o.MaxFallbackTokens = d.MaxFallbackTokens
	}
	if o.MaxAnswerTokens <= 0 {
		o.MaxAnswerTokens = d.MaxAnswerTokens
	}
	if o.MaxSummaryTokens <= 0 {
		o.MaxSummaryTokens = d.MaxSummaryTokens
	}
	if o.Beams <= 0 {
		o.Beams = d.Beams
	}
	if o.MinQuestionLength <= 0 {
		o.MinQuestionLength = d.MinQuestionLength
	}
	if o.MinAnswerWords <= 0 {
		o.MinAnswerWords = d.MinAnswerWords
	}
	if o.MaxAnswerWords <= 0 {
		o.MaxAnswerWords = d.MaxAnswerWords
	}
	return o
}

// Generator produces flashcards from text.
type Generator struct {
	gen    generator.Generator
	opts   Options
	logger *log.Logger
}

// New returns a Generator. Zero-valued options take defaults.
func New(gen generator.Generator, opts Options, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Generator{gen: gen, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (g *Generator) Options() Options { return g.opts }

// Generate produces up to n flashcards for one text segment; n <= 0 uses
// the configured quota. Questions whose answer fails generation or
// validation are skipped. The returned error is non-nil only when question
// generation itself fails or ctx is done.
func (g *Generator) Generate(ctx context.Context, text string, n int) ([]model.Flashcard, error) {
	if n <= 0 {
		n = g.opts.QuestionsPerSegment
	}

	questions, err := g.GenerateQuestions(ctx, text, n)
	if err != nil {
		return nil, err
	}

	var cards []model.Flashcard
	for _, q := range questions {
		answer, err := g.GenerateAnswer(ctx, text, q)
		if err != nil {
			if ctx.Err() != nil {
				return cards, ctx.Err()
			}
			g.logger.Warn("answer generation failed", "question", q, "err", err)
			continue
		}
		if reason := g.RejectPair(q, answer); reason != "" {
			g.logger.Debug("answer rejected", "question", q, "answer", answer, "reason", reason)
			continue
		}
		cards = append(cards, model.Flashcard{Question: strings.TrimSpace(q), Answer: strings.TrimSpace(answer)})
	}
	return cards, nil
}

// Summarize returns a model-written summary of text.
func (g *Generator) Summarize(ctx context.Context, text string) (string, error) {
	prompt := summaryPrompt(text)
	out, err := g.gen.Generate(ctx, prompt, generator.Deterministic(g.opts.MaxSummaryTokens, g.opts.Beams))
	if err != nil {
		return "", &generator.Error{Op: "summary", PromptLen: len(prompt), Err: err}
	}
	return strings.TrimSpace(out), nil
}
