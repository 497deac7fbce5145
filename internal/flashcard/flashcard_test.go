package flashcard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/model"
)

// scripted replies to prompts in order and records what it was asked.
type scripted struct {
	replies []reply
	prompts []string
	params  []generator.Params
}

type reply struct {
	out string
	err error
}

func (s *scripted) Generate(_ context.Context, prompt string, p generator.Params) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.params = append(s.params, p)
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.out, r.err
}

func script(outs ...string) *scripted {
	s := &scripted{}
	for _, o := range outs {
		s.replies = append(s.replies, reply{out: o})
	}
	return s
}

func TestParseQuestionList(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		status     ParseStatus
		items      []string
		nonStrings int
	}{
		{"direct", `["What are dogs?", "What are cats?"]`, ParseDirect, []string{"What are dogs?", "What are cats?"}, 0},
		{"surrounding prose", "Sure! Here you go:\n[\"Why?\"]\nHope that helps.", ParseBracketed, []string{"Why?"}, 0},
		{"code fence", "```json\n[\"A?\", \"B?\"]\n```", ParseBracketed, []string{"A?", "B?"}, 0},
		{"mixed element types", `["Q one?", 3, null, {"q": "x"}]`, ParseDirect, []string{"Q one?"}, 3},
		{"object not array", `{"questions": ["a?"]}`, ParseBracketed, []string{"a?"}, 0},
		{"garbage", "1. What is it?\n2. Why?", ParseEmpty, nil, 0},
		{"broken bracket", `["unterminated?`, ParseEmpty, nil, 0},
		{"empty", "", ParseEmpty, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuestionList(tt.in)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.items, got.Items)
			assert.Equal(t, tt.nonStrings, got.NonStrings)
		})
	}
}

func TestIsGenericQuestion(t *testing.T) {
	assert.True(t, IsGenericQuestion("Question 1?"))
	assert.True(t, IsGenericQuestion("question12?"))
	assert.True(t, IsGenericQuestion(" QUESTION 3? "))
	assert.False(t, IsGenericQuestion("Question 1: what is DNA?"))
	assert.False(t, IsGenericQuestion("What is question 1?"))
}

func TestGenerateQuestions_ReturnsModelQuestionsInOrder(t *testing.T) {
	gen := script(`["What are dogs?", "What are cats?"]`)
	g := New(gen, DefaultOptions(), nil)

	got, err := g.GenerateQuestions(context.Background(), "Dogs are mammals. Cats are mammals too.", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"What are dogs?", "What are cats?"}, got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "exactly 2 distinct question strings")
	assert.Contains(t, gen.prompts[0], "Dogs are mammals. Cats are mammals too.")
	assert.False(t, gen.params[0].Sample)
	assert.Equal(t, DefaultBeams, gen.params[0].Beams)
	assert.Equal(t, DefaultMaxQuestionTokens, gen.params[0].MaxTokens)
}

func TestGenerateQuestions_ValidatesAndDedups(t *testing.T) {
	gen := script(`[" \"What is DNA?\" ", "what is dna?", "Hi?", "No question mark", "Question 2?", 7, "'Where is RNA made?'"]`)
	g := New(gen, DefaultOptions(), nil)

	got, err := g.GenerateQuestions(context.Background(), "text", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"What is DNA?", "Where is RNA made?"}, got)
	assert.Len(t, gen.prompts, 1, "quota met, no fallback")
}

func TestGenerateQuestions_TruncatesToQuota(t *testing.T) {
	gen := script(`["Why A?", "Why B?", "Why C?", "Why D?"]`)
	got, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Why A?", "Why B?", "Why C?"}, got)
}

func TestGenerateQuestions_BackfillsOneAtATime(t *testing.T) {
	gen := script(
		`["What is DNA?"]`,
		"What is RNA?",
		`"How do cells divide?"`,
	)
	g := New(gen, DefaultOptions(), nil)

	got, err := g.GenerateQuestions(context.Background(), "text", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"What is DNA?", "What is RNA?", "How do cells divide?"}, got)
	require.Len(t, gen.prompts, 3)
	assert.Contains(t, gen.prompts[1], `["what is dna?"]`)
	assert.Contains(t, gen.prompts[2], `["what is dna?","what is rna?"]`)
	assert.Equal(t, DefaultMaxFallbackTokens, gen.params[1].MaxTokens)
}

func TestGenerateQuestions_BackfillStopsAtFirstRejection(t *testing.T) {
	tests := []struct {
		name     string
		fallback reply
	}{
		{"duplicate", reply{out: "WHAT IS DNA?"}},
		{"generic", reply{out: "Question 2?"}},
		{"empty", reply{out: "   "}},
		{"no question mark", reply{out: "DNA is a molecule."}},
		{"call failed", reply{err: errors.New("model crashed")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scripted{replies: []reply{
				{out: `["What is DNA?"]`},
				tt.fallback,
				{out: "What is RNA?"},
			}}
			got, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", 3)
			require.NoError(t, err)
			assert.Equal(t, []string{"What is DNA?"}, got)
			assert.Len(t, gen.prompts, 2, "no retry after a rejected candidate")
		})
	}
}

func TestGenerateQuestions_UnparseableResponseUsesFallback(t *testing.T) {
	gen := script("I cannot do that.", "What is a gene?", "")
	got, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"What is a gene?"}, got)
	assert.Len(t, gen.prompts, 3)
}

func TestGenerateQuestions_FallbackCallsBounded(t *testing.T) {
	// A model that only ever produces fresh valid questions still gets at most n calls in total.
	n := 0
	gen := generator.Func(func(ctx context.Context, prompt string, p generator.Params) (string, error) {
		n++
		if strings.Contains(prompt, "JSON array") {
			return "[]", nil
		}
		return strings.Repeat("Why", n) + "?", nil
	})
	got, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, 5, n)
}

func TestGenerateQuestions_InitialFailureIsGenerationError(t *testing.T) {
	gen := &scripted{replies: []reply{{err: errors.New("connection refused")}}}
	_, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", 3)
	require.Error(t, err)
	assert.True(t, generator.IsGenerationError(err))
}

func TestGenerateQuestions_Properties(t *testing.T) {
	responses := []string{
		`["A?", "a?", "Why is the sky blue?", "WHY IS THE SKY BLUE?", "Question 9?", "Is it?", "is it?"]`,
		`not json at all`,
		`["What is a cell?","What is a cell?","What is a cell?","What is a cell?"]`,
	}
	for _, resp := range responses {
		for n := 1; n <= 4; n++ {
			gen := script(resp, "Is it?", "What holds?", "Where now?")
			got, err := New(gen, DefaultOptions(), nil).GenerateQuestions(context.Background(), "text", n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got), n)
			seen := map[string]bool{}
			for _, q := range got {
				assert.Contains(t, q, "?")
				key := strings.ToLower(q)
				assert.False(t, seen[key], "duplicate %q", q)
				seen[key] = true
			}
		}
	}
}

func TestRejectPair(t *testing.T) {
	g := New(script(), DefaultOptions(), nil)
	tests := []struct {
		q, a   string
		reject bool
	}{
		{"What are dogs?", "Dogs are mammals.", false},
		{"What are dogs?", "", true},
		{"What are dogs?", "Mammals.", true},
		{"What are dogs?", strings.Repeat("word ", 51), true},
		{"What are dogs?", strings.Repeat("word ", 50), false},
		{"What are dogs?", "what are DOGS?", true},
		{"", "Dogs are mammals.", true},
	}
	for _, tt := range tests {
		got := g.RejectPair(tt.q, tt.a)
		assert.Equal(t, tt.reject, got != "", "q=%q a=%q reason=%q", tt.q, tt.a, got)
	}
}

func TestGenerate(t *testing.T) {
	gen := script(
		`["What are dogs?", "What are cats?", "What is a pet?"]`,
		`"Dogs are mammals."`,
		"What are cats?",
		"A pet is a companion animal.",
	)
	g := New(gen, DefaultOptions(), nil)

	cards, err := g.Generate(context.Background(), "Dogs are mammals. Cats are mammals too.", 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Flashcard{
		{Question: "What are dogs?", Answer: "Dogs are mammals."},
		{Question: "What is a pet?", Answer: "A pet is a companion animal."},
	}, cards)
	assert.Contains(t, gen.prompts[1], "Question: What are dogs?")
	assert.Equal(t, DefaultMaxAnswerTokens, gen.params[1].MaxTokens)
}

func TestGenerate_AnswerFailureSkipsQuestion(t *testing.T) {
	gen := &scripted{replies: []reply{
		{out: `["What are dogs?", "What are cats?"]`},
		{err: errors.New("timeout")},
		{out: "Cats are mammals too."},
	}}
	cards, err := New(gen, DefaultOptions(), nil).Generate(context.Background(), "text", 2)
	require.NoError(t, err)
	assert.Equal(t, []model.Flashcard{{Question: "What are cats?", Answer: "Cats are mammals too."}}, cards)
}

func TestGenerate_DefaultQuota(t *testing.T) {
	gen := script(`["A question?", "B question?", "C question?", "D question?"]`)
	g := New(gen, Options{QuestionsPerSegment: 2}, nil)
	g.Generate(context.Background(), "text", 0)
	assert.Contains(t, gen.prompts[0], "exactly 2 distinct")
	assert.Len(t, gen.prompts, 3, "one question request and two answers")
}

func TestSummarize(t *testing.T) {
	gen := script("  Dogs and cats are mammals.  ")
	out, err := New(gen, DefaultOptions(), nil).Summarize(context.Background(), "Dogs are mammals.")
	require.NoError(t, err)
	assert.Equal(t, "Dogs and cats are mammals.", out)
	assert.Equal(t, "Summarize the following text: Dogs are mammals.", gen.prompts[0])
	assert.Equal(t, DefaultMaxSummaryTokens, gen.params[0].MaxTokens)
}
