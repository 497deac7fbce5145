// Package pipeline runs a source through extraction, cleaning, chunking,
// flashcard generation and storage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/rcliao/flashcards/internal/chunker"
	"github.com/rcliao/flashcards/internal/extract"
	"github.com/rcliao/flashcards/internal/flashcard"
	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/history"
	"github.com/rcliao/flashcards/internal/model"
	"github.com/rcliao/flashcards/internal/textproc"
)

// ErrNoText is returned when extraction yields no text at all.
var ErrNoText = errors.New("no text to process")

// Extractor turns a source into text.
type Extractor interface {
	Extract(ctx context.Context, source string) (*extract.Result, error)
	ExtractFile(ctx context.Context, path string) (*extract.Result, error)
}

// CardStore persists generated cards.
type CardStore interface {
	Save(cards []model.Flashcard, appendMode bool) error
	Clean() (int, error)
}

// Recorder keeps a record of runs.
type Recorder interface {
	StartRun(ctx context.Context, p history.StartParams) (*model.Run, error)
	FinishRun(ctx context.Context, id string, p history.FinishParams) error
}

// Options configures a Pipeline.
type Options struct {
	Chunker          chunker.Options
	Normalize        textproc.NormalizeOptions
	MinSegmentLength int
	// Questions per segment; 0 uses the generator's configured quota.
	Questions int
	Summary   bool
	// NoSave skips writing cards to the store.
	NoSave bool
	// OnSegment, if set, is called before each segment is processed.
	OnSegment func(index, total int)
}

// DefaultOptions returns default pipeline options.
func DefaultOptions() Options {
	return Options{
		Chunker:          chunker.DefaultOptions(),
		Normalize:        textproc.DefaultNormalizeOptions(),
		MinSegmentLength: textproc.DefaultMinSegmentLength,
	}
}

// Input is one source: a file path or raw text.
type Input struct {
	Path string
	Text string
}

func (in Input) label() string {
	if in.Path != "" {
		return in.Path
	}
	const maxLabel = 60
	text := strings.Join(strings.Fields(in.Text), " ")
	if utf8.RuneCountInString(text) <= maxLabel {
		return text
	}
	return string([]rune(text)[:maxLabel]) + "..."
}

// Result summarizes one run.
type Result struct {
	RunID      string            `json:"run_id,omitempty"`
	Source     string            `json:"source"`
	SourceType string            `json:"source_type"`
	OCR        bool              `json:"ocr"`
	Chars      int               `json:"chars"`
	Sentences  int               `json:"sentences"`
	Chunks     int               `json:"chunks"`
	Segments   int               `json:"segments"`
	Failures   int               `json:"failures"`
	Cards      []model.Flashcard `json:"cards"`
	Summary    string            `json:"summary,omitempty"`
	Saved      bool              `json:"saved"`
	Removed    int               `json:"duplicates_removed"`
	Duration   time.Duration     `json:"duration_ns"`
}

// Pipeline generates flashcards from sources.
type Pipeline struct {
	extractor Extractor
	segmenter *textproc.Segmenter
	cards     *flashcard.Generator
	store     CardStore
	recorder  Recorder
	logger    *log.Logger
	opts      Options

	provider, model string
}

// New returns a Pipeline. store and recorder may be nil.
func New(extractor Extractor, segmenter *textproc.Segmenter, cards *flashcard.Generator, store CardStore, recorder Recorder, opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.MinSegmentLength <= 0 {
		opts.MinSegmentLength = textproc.DefaultMinSegmentLength
	}
	return &Pipeline{
		extractor: extractor,
		segmenter: segmenter,
		cards:     cards,
		store:     store,
		recorder:  recorder,
		logger:    logger,
		opts:      opts,
	}
}

// WithModel sets the provider and model recorded with each run.
func (p *Pipeline) WithModel(g generator.Generator) *Pipeline {
	if n, ok := g.(generator.Named); ok {
		p.provider, p.model = n.Name(), n.Model()
	}
	return p
}

// Run processes one input end to end. Extraction and storage failures are
// returned; a segment whose generation fails is logged, counted and
// skipped.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	res := &Result{Source: in.label(), SourceType: model.SourceText}

	text, err := p.extract(ctx, in, res)
	if err != nil {
		return res, err
	}
	res.Chars = utf8.RuneCountInString(text)

	runID := p.startRun(ctx, res)
	res.RunID = runID

	err = p.process(ctx, text, res)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if serr := p.save(res); serr != nil {
			err = errors.Join(err, serr)
		}
	}

	res.Duration = time.Since(start)
	p.finishRun(runID, res, err)
	return res, err
}

func (p *Pipeline) extract(ctx context.Context, in Input, res *Result) (string, error) {
	var (
		xr  *extract.Result
		err error
	)
	if in.Path != "" {
		xr, err = p.extractor.ExtractFile(ctx, in.Path)
	} else {
		xr, err = p.extractor.Extract(ctx, in.Text)
	}
	if err != nil {
		return "", err
	}
	res.SourceType, res.OCR = xr.SourceType, xr.OCR
	if strings.TrimSpace(xr.Text) == "" {
		return "", fmt.Errorf("%s: %w", res.Source, ErrNoText)
	}
	return xr.Text, nil
}

// process turns text into cards on res.
func (p *Pipeline) process(ctx context.Context, text string, res *Result) error {
	cleaned := textproc.Normalize(textproc.FilterLines(text), p.opts.Normalize)
	if cleaned == "" {
		p.logger.Info("nothing left after cleaning, no segments to generate from", "source", res.Source)
		return nil
	}

	sentences := p.segmenter.Segment(cleaned)
	res.Sentences = len(sentences)

	chunks := chunker.Build(sentences, p.opts.Chunker)
	res.Chunks = len(chunks)

	segments := textproc.FilterSegments(chunker.Texts(chunks), p.opts.MinSegmentLength)
	res.Segments = len(segments)
	p.logger.Info("prepared segments", "sentences", len(sentences), "chunks", len(chunks), "segments", len(segments))

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.opts.OnSegment != nil {
			p.opts.OnSegment(i, len(segments))
		}

		cards, err := p.cards.Generate(ctx, seg, p.opts.Questions)
		res.Cards = append(res.Cards, cards...)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failures++
			p.logger.Warn("segment generation failed", "segment", i+1, "of", len(segments), "err", err)
			continue
		}
		p.logger.Debug("segment done", "segment", i+1, "of", len(segments), "cards", len(cards))
	}

	if p.opts.Summary {
		summary, err := p.cards.Summarize(ctx, cleaned)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("summary generation failed", "err", err)
		}
		res.Summary = summary
	}
	return nil
}

func (p *Pipeline) save(res *Result) error {
	if p.opts.NoSave || p.store == nil || len(res.Cards) == 0 {
		return nil
	}
	if err := p.store.Save(res.Cards, true); err != nil {
		return err
	}
	res.Saved = true

	removed, err := p.store.Clean()
	if err != nil {
		return err
	}
	res.Removed = removed
	p.logger.Info("saved flashcards", "cards", len(res.Cards), "duplicates_removed", removed)
	return nil
}

func (p *Pipeline) startRun(ctx context.Context, res *Result) string {
	if p.recorder == nil {
		return ""
	}
	run, err := p.recorder.StartRun(ctx, history.StartParams{
		Source:     res.Source,
		SourceType: res.SourceType,
		Chars:      res.Chars,
		Provider:   p.provider,
		Model:      p.model,
	})
	if err != nil {
		p.logger.Warn("could not record run", "err", err)
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(id string, res *Result, runErr error) {
	if p.recorder == nil || id == "" {
		return
	}
	// The run context may already be canceled; the record should still land.
	err := p.recorder.FinishRun(context.Background(), id, history.FinishParams{
		Chunks:   res.Chunks,
		Segments: res.Segments,
		Cards:    len(res.Cards),
		Failures: res.Failures,
		Err:      runErr,
	})
	if err != nil {
		p.logger.Warn("could not record run result", "run", id, "err", err)
	}
}
