package flashcard

import (
	"context"
	"strings"

	"github.com/rcliao/flashcards/internal/generator"
)

// GenerateAnswer asks the model for a one-sentence answer to question.
// The result is trimmed of whitespace and surrounding quotes but not
// validated; see RejectPair.
func (g *Generator) GenerateAnswer(ctx context.Context, text, question string) (string, error) {
	prompt := answerPrompt(text, question)
	out, err := g.gen.Generate(ctx, prompt, generator.Deterministic(g.opts.MaxAnswerTokens, g.opts.Beams))
	if err != nil {
		return "", &generator.Error{Op: "answer", PromptLen: len(prompt), Err: err}
	}
	return cleanCandidate(out), nil
}

// RejectPair returns why a question/answer pair should not become a card,
// or "" when it is acceptable.
func (g *Generator) RejectPair(question, answer string) string {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" {
		return "empty question"
	}
	if answer == "" {
		return "empty answer"
	}
	words := len(strings.Fields(answer))
	if words < g.opts.MinAnswerWords {
		return "answer too short"
	}
	if words > g.opts.MaxAnswerWords {
		return "answer too long"
	}
	if strings.EqualFold(answer, question) {
		return "answer repeats question"
	}
	return ""
}
