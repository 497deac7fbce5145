package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/flashcards/internal/model"
)

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		source      TEXT NOT NULL,
		source_type TEXT NOT NULL,
		chars       INTEGER NOT NULL DEFAULT 0,
		chunks      INTEGER NOT NULL DEFAULT 0,
		segments    INTEGER NOT NULL DEFAULT 0,
		cards       INTEGER NOT NULL DEFAULT 0,
		failures    INTEGER NOT NULL DEFAULT 0,
		provider    TEXT,
		model       TEXT,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		error       TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_source_type ON runs(source_type);

	CREATE TABLE IF NOT EXISTS completions (
		key         TEXT PRIMARY KEY,
		completion  TEXT NOT NULL,
		hits        INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_completions_created ON completions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) StartRun(ctx context.Context, p StartParams) (*model.Run, error) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:         s.newID(),
		Source:     p.Source,
		SourceType: p.SourceType,
		Chars:      p.Chars,
		Provider:   p.Provider,
		Model:      p.Model,
		StartedAt:  now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, source_type, chars, provider, model, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.SourceType, run.Chars, nullable(run.Provider), nullable(run.Model),
		now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, p FinishParams) error {
	var errText *string
	if p.Err != nil {
		msg := p.Err.Error()
		errText = &msg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET chunks = ?, segments = ?, cards = ?, failures = ?, finished_at = ?, error = ?
		 WHERE id = ?`,
		p.Chunks, p.Segments, p.Cards, p.Failures, time.Now().UTC().Format(timeFormat), errText, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const runColumns = `id, source, source_type, chars, chunks, segments, cards, failures,
	provider, model, started_at, finished_at, error`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, p ListParams) ([]model.Run, error) {
	var where []string
	var args []interface{}

	if p.SourceType != "" {
		where = append(where, "source_type = ?")
		args = append(args, p.SourceType)
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if p.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, p.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetCompletion(ctx context.Context, key string) (string, bool, error) {
	var completion string
	err := s.db.QueryRowContext(ctx, `SELECT completion FROM completions WHERE key = ?`, key).Scan(&completion)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	s.db.ExecContext(ctx, `UPDATE completions SET hits = hits + 1 WHERE key = ?`, key)
	return completion, true, nil
}

func (s *SQLiteStore) PutCompletion(ctx context.Context, key, completion string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (key, completion, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET completion = excluded.completion, created_at = excluded.created_at`,
		key, completion, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PruneCompletions(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `DELETE FROM completions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (model.Run, error) {
	var r model.Run
	var provider, modelName, finishedAt, errText sql.NullString
	var startedAt string

	err := row.Scan(
		&r.ID, &r.Source, &r.SourceType, &r.Chars, &r.Chunks, &r.Segments, &r.Cards, &r.Failures,
		&provider, &modelName, &startedAt, &finishedAt, &errText,
	)
	if err != nil {
		return r, err
	}

	r.Provider = provider.String
	r.Model = modelName.String
	r.Error = errText.String
	r.StartedAt, _ = time.Parse(timeFormat, startedAt)
	if finishedAt.Valid {
		t, _ := time.Parse(timeFormat, finishedAt.String)
		r.FinishedAt = &t
	}
	return r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var ageRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseAge parses an age string like "7d", "24h", "30m" into a time.Duration.
func ParseAge(s string) (time.Duration, error) {
	m := ageRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q (use e.g. 7d, 24h, 30m, 60s)", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}
