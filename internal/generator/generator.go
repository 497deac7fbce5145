// Package generator provides a pluggable interface for text generation providers.
package generator

import (
	"context"
	"errors"
	"fmt"
)

// Params are the decoding options for one generation request.
type Params struct {
	MaxTokens   int
	Beams       int
	Sample      bool
	Temperature float64
}

// Deterministic returns greedy/beam decoding params. Requests made with
// deterministic params are reproducible and safe to cache.
func Deterministic(maxTokens, beams int) Params {
	return Params{MaxTokens: maxTokens, Beams: beams}
}

// Generator produces a single best completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, prompt string, p Params) (string, error)

func (f Func) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	return f(ctx, prompt, p)
}

// ErrEmptyResponse is returned when a provider answers without a completion.
var ErrEmptyResponse = errors.New("no completion returned")

// Error is returned when the underlying model call fails.
type Error struct {
	Op        string
	PromptLen int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generation failed for %s (prompt %d chars): %v", e.Op, e.PromptLen, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Code, e.Body)
}

// IsGenerationError reports whether err came from a failed model call.
func IsGenerationError(err error) bool {
	var ge *Error
	return errors.As(err, &ge)
}
