package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/flashcards/internal/generator"
	"github.com/rcliao/flashcards/internal/model"
)

var _ generator.Cache = (*SQLiteStore)(nil)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartAndFinishRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.StartRun(ctx, StartParams{
		Source: "notes.txt", SourceType: model.SourceFile, Chars: 1200, Provider: "ollama", Model: "llama3.2",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.ID == "" {
		t.Error("expected non-empty ID")
	}

	if err := s.FinishRun(ctx, run.ID, FinishParams{Chunks: 4, Segments: 3, Cards: 7, Failures: 1}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Cards != 7 || got.Segments != 3 || got.Chunks != 4 || got.Failures != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if got.Error != "" {
		t.Errorf("expected no error, got %q", got.Error)
	}
	if got.Provider != "ollama" || got.Model != "llama3.2" {
		t.Errorf("unexpected provider/model: %q %q", got.Provider, got.Model)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("started_at round trip: %v != %v", got.StartedAt, run.StartedAt)
	}
}

func TestFinishRunRecordsError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, _ := s.StartRun(ctx, StartParams{Source: "scan.pdf", SourceType: model.SourcePDF})
	s.FinishRun(ctx, run.ID, FinishParams{Err: errors.New("extract failed")})

	got, _ := s.GetRun(ctx, run.ID)
	if got.Error != "extract failed" {
		t.Errorf("expected error recorded, got %q", got.Error)
	}
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := s.FinishRun(ctx, "nope", FinishParams{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.StartRun(ctx, StartParams{Source: "a", SourceType: model.SourceText})
	s.StartRun(ctx, StartParams{Source: "b", SourceType: model.SourceFile})
	s.StartRun(ctx, StartParams{Source: "c", SourceType: model.SourceText})

	all, err := s.ListRuns(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Source != "c" {
		t.Errorf("expected newest first, got %q", all[0].Source)
	}

	text, _ := s.ListRuns(ctx, ListParams{SourceType: model.SourceText})
	if len(text) != 2 {
		t.Errorf("expected 2 text runs, got %d", len(text))
	}

	limited, _ := s.ListRuns(ctx, ListParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1, got %d", len(limited))
	}
}

func TestCompletionCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.GetCompletion(ctx, "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.PutCompletion(ctx, "k", `["What is DNA?"]`); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutCompletion(ctx, "k", `["What is RNA?"]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := s.GetCompletion(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != `["What is RNA?"]` {
		t.Errorf("unexpected completion %q", got)
	}
}

func TestCachedGeneratorUsesStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	calls := 0
	gen := generator.NewCached(generator.Func(func(ctx context.Context, prompt string, p generator.Params) (string, error) {
		calls++
		return "A cell is the unit of life.", nil
	}), s, "ollama/llama3.2", nil)

	for i := 0; i < 3; i++ {
		out, err := gen.Generate(ctx, "Answer: what is a cell?", generator.Deterministic(48, 4))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if out != "A cell is the unit of life." {
			t.Errorf("unexpected output %q", out)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 model call, got %d", calls)
	}

	st, _ := s.Stats(ctx, "")
	if st.Completions != 1 || st.CacheHits != 2 {
		t.Errorf("expected 1 completion with 2 hits, got %d/%d", st.Completions, st.CacheHits)
	}
}

func TestPruneCompletions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutCompletion(ctx, "old", "x")
	s.db.Exec(`UPDATE completions SET created_at = ? WHERE key = 'old'`,
		time.Now().UTC().Add(-48*time.Hour).Format(timeFormat))
	s.PutCompletion(ctx, "new", "y")

	n, err := s.PruneCompletions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	if _, ok, _ := s.GetCompletion(ctx, "new"); !ok {
		t.Error("recent completion should survive")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r1, _ := s.StartRun(ctx, StartParams{Source: "a", SourceType: model.SourceText})
	s.FinishRun(ctx, r1.ID, FinishParams{Cards: 3})
	r2, _ := s.StartRun(ctx, StartParams{Source: "b", SourceType: model.SourceFile})
	s.FinishRun(ctx, r2.ID, FinishParams{Cards: 2, Err: errors.New("boom")})
	r3, _ := s.StartRun(ctx, StartParams{Source: "c", SourceType: model.SourceText})
	s.FinishRun(ctx, r3.ID, FinishParams{Cards: 4})

	st, err := s.Stats(ctx, filepath.Join(t.TempDir(), "missing.db"))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRuns != 3 || st.TotalCards != 9 || st.FailedRuns != 1 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if len(st.Sources) != 2 || st.Sources[0].SourceType != model.SourceText || st.Sources[0].Cards != 7 {
		t.Errorf("unexpected per-source stats: %+v", st.Sources)
	}
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"60s", time.Minute, false},
		{"", 0, true},
		{"7w", 0, true},
		{"d7", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAge(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseAge(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAge(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
