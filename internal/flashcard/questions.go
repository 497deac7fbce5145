package flashcard

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/flashcards/internal/generator"
)

// GenerateQuestions asks the model for n distinct questions about text.
//
// The first request asks for a JSON array. If fewer than n valid questions
// survive, single-question requests are issued until the quota is met, and
// the first rejected or unusable candidate ends the backfill. The result
// never exceeds n items, never holds case-insensitive duplicates, and every
// item contains a question mark. Only a failure of the initial request is
// returned as an error.
func (g *Generator) GenerateQuestions(ctx context.Context, text string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	prompt := questionsPrompt(text, n)
	out, err := g.gen.Generate(ctx, prompt, generator.Deterministic(g.opts.MaxQuestionTokens, g.opts.Beams))
	if err != nil {
		return nil, &generator.Error{Op: "questions", PromptLen: len(prompt), Err: err}
	}

	parsed := ParseQuestionList(out)
	g.logger.Debug("parsed question list", "status", parsed.Status, "items", len(parsed.Items), "non_strings", parsed.NonStrings)

	set := newQuestionSet()
	for _, raw := range parsed.Items {
		q := cleanCandidate(raw)
		if reason := g.rejectQuestion(q); reason != "" {
			g.logger.Debug("question rejected", "question", q, "reason", reason)
			continue
		}
		set.add(q)
	}
	set.truncate(n)

	g.backfill(ctx, text, n, set)
	return set.items, nil
}

// backfill requests one question at a time until set holds n items. It
// stops at the first rejected candidate, empty completion or failed call,
// so it makes at most n-len(set) requests.
func (g *Generator) backfill(ctx context.Context, text string, n int, set *questionSet) {
	for set.len() < n {
		prompt := singleQuestionPrompt(text, set.keys())
		out, err := g.gen.Generate(ctx, prompt, generator.Deterministic(g.opts.MaxFallbackTokens, g.opts.Beams))
		if err != nil {
			g.logger.Warn("fallback question generation failed", "err", err)
			return
		}
		q := cleanCandidate(out)
		if reason := g.rejectQuestion(q); reason != "" {
			g.logger.Debug("fallback question rejected", "question", q, "reason", reason)
			return
		}
		if set.has(q) {
			g.logger.Debug("fallback question repeated", "question", q)
			return
		}
		set.add(q)
	}
}

func (g *Generator) rejectQuestion(q string) string {
	switch {
	case q == "":
		return "empty"
	case utf8.RuneCountInString(q) < g.opts.MinQuestionLength:
		return "too short"
	case !strings.Contains(q, "?"):
		return "no question mark"
	case IsGenericQuestion(q):
		return "generic placeholder"
	}
	return ""
}

// questionSet keeps questions in first-seen order, unique by lowercase form.
type questionSet struct {
	items []string
	seen  map[string]bool
}

func newQuestionSet() *questionSet {
	return &questionSet{seen: map[string]bool{}}
}

func (s *questionSet) has(q string) bool { return s.seen[strings.ToLower(q)] }

func (s *questionSet) add(q string) bool {
	key := strings.ToLower(q)
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.items = append(s.items, q)
	return true
}

func (s *questionSet) len() int { return len(s.items) }

func (s *questionSet) truncate(n int) {
	if len(s.items) <= n {
		return
	}
	for _, q := range s.items[n:] {
		delete(s.seen, strings.ToLower(q))
	}
	s.items = s.items[:n]
}

func (s *questionSet) keys() []string {
	out := make([]string, len(s.items))
	for i, q := range s.items {
		out[i] = strings.ToLower(q)
	}
	return out
}
