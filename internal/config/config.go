// Package config loads flashcard settings from defaults, a config file,
// FLASHCARD_* environment variables and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rcliao/flashcards/internal/cardstore"
	"github.com/rcliao/flashcards/internal/chunker"
	"github.com/rcliao/flashcards/internal/extract"
	"github.com/rcliao/flashcards/internal/flashcard"
	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/ocr"
	"github.com/rcliao/flashcards/internal/textproc"
)

// Config holds every tunable setting. Keys are flat so config files from
// older releases keep working.
type Config struct {
	// Text processing
	TargetWords      int     `koanf:"target_words"       env:"TARGET_WORDS"       validate:"min=1"`
	OverlapRatio     float64 `koanf:"overlap_ratio"      env:"OVERLAP_RATIO"      validate:"gte=0,lt=1"`
	MinSegmentLength int     `koanf:"min_segment_length" env:"MIN_SEGMENT_LENGTH" validate:"min=1"`
	Lowercase        bool    `koanf:"lowercase"          env:"LOWERCASE"`

	// Generation
	QuestionsPerSegment int `koanf:"questions_per_segment" env:"QUESTIONS"          validate:"min=1"`
	MaxSummaryTokens    int `koanf:"max_summary_tokens"    env:"MAX_SUMMARY_TOKENS" validate:"min=1"`
	MaxQuestionTokens   int `koanf:"max_question_tokens"   env:"MAX_QUESTION_TOKENS" validate:"min=1"`
	MaxFallbackTokens   int `koanf:"max_fallback_tokens"   env:"MAX_FALLBACK_TOKENS" validate:"min=1"`
	MaxAnswerTokens     int `koanf:"max_answer_tokens"     env:"MAX_ANSWER_TOKENS"  validate:"min=1"`
	Beams               int `koanf:"beams"                 env:"BEAMS"              validate:"min=1"`

	// Quality filters
	MinQuestionLength int `koanf:"min_question_length" env:"MIN_QUESTION_LENGTH" validate:"min=1"`
	MinAnswerWords    int `koanf:"min_answer_words"    env:"MIN_ANSWER_WORDS"    validate:"min=1"`
	MaxAnswerWords    int `koanf:"max_answer_words"    env:"MAX_ANSWER_WORDS"    validate:"min=1"`

	// Model provider
	Provider         string        `koanf:"provider"          env:"PROVIDER"  validate:"oneof=ollama openai"`
	Model            string        `koanf:"model"             env:"AI_MODEL"`
	BaseURL          string        `koanf:"base_url"          env:"BASE_URL"`
	APIKey           string        `koanf:"api_key"           env:"API_KEY"`
	Timeout          time.Duration `koanf:"timeout"           env:"TIMEOUT"   validate:"gt=0"`
	Retries          int           `koanf:"retries"           env:"RETRIES"   validate:"min=0"`
	CacheCompletions bool          `koanf:"cache_completions" env:"CACHE"`

	// Extraction
	OCRConfidence      float64  `koanf:"ocr_confidence"       env:"OCR_THRESHOLD"        validate:"gte=0,lte=1"`
	OCRLanguages       []string `koanf:"ocr_languages"        env:"OCR_LANGUAGES"        validate:"min=1"`
	MinSelectableChars int      `koanf:"min_selectable_chars" env:"MIN_SELECTABLE_CHARS" validate:"min=1"`
	MaxFileSizeMB      int      `koanf:"max_file_size_mb"     env:"MAX_FILE_SIZE"        validate:"min=1"`

	// Files
	Storage   string `koanf:"storage"    env:"STORAGE"    validate:"required"`
	HistoryDB string `koanf:"history_db" env:"HISTORY_DB"`

	// Logging
	LogLevel string `koanf:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogJSON  bool   `koanf:"log_json"  env:"LOG_JSON"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TargetWords:      chunker.DefaultTargetWords,
		OverlapRatio:     chunker.DefaultOverlapRatio,
		MinSegmentLength: textproc.DefaultMinSegmentLength,
		Lowercase:        true,

		QuestionsPerSegment: flashcard.DefaultQuestionsPerSegment,
		MaxSummaryTokens:    flashcard.DefaultMaxSummaryTokens,
		MaxQuestionTokens:   flashcard.DefaultMaxQuestionTokens,
		MaxFallbackTokens:   flashcard.DefaultMaxFallbackTokens,
		MaxAnswerTokens:     flashcard.DefaultMaxAnswerTokens,
		Beams:               flashcard.DefaultBeams,

		MinQuestionLength: flashcard.DefaultMinQuestionLength,
		MinAnswerWords:    flashcard.DefaultMinAnswerWords,
		MaxAnswerWords:    flashcard.DefaultMaxAnswerWords,

		Provider:         generator.ProviderOllama,
		Timeout:          generator.DefaultTimeout,
		Retries:          generator.DefaultRetries,
		CacheCompletions: true,

		OCRConfidence:      ocr.DefaultMinConfidence,
		OCRLanguages:       []string{ocr.DefaultLanguage},
		MinSelectableChars: extract.DefaultMinSelectableChars,
		MaxFileSizeMB:      extract.DefaultMaxFileSize >> 20,

		Storage:   cardstore.DefaultPath,
		HistoryDB: defaultHistoryDB(),

		LogLevel: "info",
	}
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".flashcards", "history.db")
	}
	return filepath.Join(home, ".flashcards", "history.db")
}

// ChunkerOptions returns the chunk builder settings.
func (c *Config) ChunkerOptions() chunker.Options {
	return chunker.Options{TargetWords: c.TargetWords, OverlapRatio: c.OverlapRatio}
}

// NormalizeOptions returns the text normalization settings.
func (c *Config) NormalizeOptions() textproc.NormalizeOptions {
	return textproc.NormalizeOptions{Lowercase: c.Lowercase}
}

// FlashcardOptions returns the question/answer generation settings.
func (c *Config) FlashcardOptions() flashcard.Options {
	return flashcard.Options{
		QuestionsPerSegment: c.QuestionsPerSegment,
		MaxQuestionTokens:   c.MaxQuestionTokens,
		MaxFallbackTokens:   c.MaxFallbackTokens,
		MaxAnswerTokens:     c.MaxAnswerTokens,
		MaxSummaryTokens:    c.MaxSummaryTokens,
		Beams:               c.Beams,
		MinQuestionLength:   c.MinQuestionLength,
		MinAnswerWords:      c.MinAnswerWords,
		MaxAnswerWords:      c.MaxAnswerWords,
	}
}

// GeneratorOptions returns the provider selection.
func (c *Config) GeneratorOptions() generator.Options {
	return generator.Options{Provider: c.Provider, Model: c.Model, BaseURL: c.BaseURL, APIKey: c.APIKey}
}

// GuardOptions returns the timeout and retry policy for model calls.
func (c *Config) GuardOptions(logger *log.Logger) generator.GuardOptions {
	retries := c.Retries
	if retries == 0 {
		retries = -1
	}
	return generator.GuardOptions{Timeout: c.Timeout, Retries: retries, Logger: logger}
}

// ExtractOptions returns the extraction limits and OCR settings.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		MaxFileSize:        int64(c.MaxFileSizeMB) << 20,
		MinSelectableChars: c.MinSelectableChars,
		OCR:                ocr.Options{Language: strings.Join(c.OCRLanguages, "+"), MinConfidence: c.OCRConfidence},
	}
}
