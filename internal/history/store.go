// Package history records generation runs and caches deterministic model
// completions in SQLite.
package history

import (
	"context"
	"time"

	"github.com/rcliao/flashcards/internal/model"
)

// StartParams describes a run that is about to begin.
type StartParams struct {
	Source     string
	SourceType string
	Chars      int
	Provider   string
	Model      string
}

// FinishParams holds the outcome of a run.
type FinishParams struct {
	Chunks   int
	Segments int
	Cards    int
	Failures int
	Err      error
}

// ListParams filters listed runs.
type ListParams struct {
	SourceType string
	Limit      int
}

// Store defines the run history interface.
type Store interface {
	// StartRun records a new run and returns it with its ID set.
	StartRun(ctx context.Context, p StartParams) (*model.Run, error)

	// FinishRun records the outcome of a started run.
	FinishRun(ctx context.Context, id string, p FinishParams) error

	// GetRun returns one run by ID.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// ListRuns lists runs, newest first.
	ListRuns(ctx context.Context, p ListParams) ([]model.Run, error)

	// GetCompletion returns a cached completion.
	GetCompletion(ctx context.Context, key string) (string, bool, error)

	// PutCompletion caches a completion.
	PutCompletion(ctx context.Context, key, completion string) error

	// PruneCompletions drops cached completions older than age.
	PruneCompletions(ctx context.Context, age time.Duration) (int64, error)

	// Close closes the store.
	Close() error
}
