// Package model defines the core flashcard data types.
package model

import (
	"strings"
	"time"
)

// Flashcard is a persisted question/answer pair.
// Field names match the on-disk JSON format.
type Flashcard struct {
	Question string `json:"Question"`
	Answer   string `json:"Answer"`
}

// Key returns the normalized question used for deduplication.
func (f Flashcard) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Question))
}

// Chunk is a contiguous run of sentences used as one generation unit.
type Chunk struct {
	Seq       int    `json:"seq"`
	Text      string `json:"text"`
	Sentences int    `json:"sentences"`
	Words     int    `json:"words"`
	// First is the index of the chunk's first sentence in the source sequence.
	First int `json:"first"`
}

// Run records one pass of the generation pipeline over a source.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	SourceType string     `json:"source_type"`
	Chars      int        `json:"chars"`
	Chunks     int        `json:"chunks"`
	Segments   int        `json:"segments"`
	Cards      int        `json:"cards"`
	Failures   int        `json:"failures"`
	Provider   string     `json:"provider"`
	Model      string     `json:"model"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Source types recorded on a Run.
const (
	SourceText  = "text"
	SourcePDF   = "pdf"
	SourceImage = "image"
	SourceFile  = "file"
)
