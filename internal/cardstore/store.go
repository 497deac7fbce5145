// Package cardstore persists flashcards as a pretty-printed JSON array.
package cardstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/rcliao/flashcards/internal/model"
)

// DefaultPath is the card file used when none is configured.
const DefaultPath = "flashcards.json"

// Error is a storage failure that callers should surface.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Store reads and writes a card file. Writers are serialized in-process by
// a mutex and across processes by a lock file next to the card file.
// Every read goes to disk, so other writers are always seen.
type Store struct {
	path   string
	logger *log.Logger
	lock   *flock.Flock

	mu sync.Mutex
}

// loadResult is what was found on disk. A corrupt file reads as no cards.
type loadResult struct {
	cards   []model.Flashcard
	exists  bool
	corrupt bool
}

// rename is swapped in tests.
var rename = os.Rename

// New returns a Store for the card file at path.
func New(path string, logger *log.Logger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		path:   path,
		logger: logger,
		lock:   flock.New(path + ".lock"),
	}
}

// Path returns the card file path.
func (s *Store) Path() string { return s.path }

// BackupPath returns where the previous file is kept before a rewrite.
func (s *Store) BackupPath() string { return s.path + ".backup" }

// Load returns the stored cards. A missing or unparseable file yields an
// empty slice; only I/O failures are returned as errors.
func (s *Store) Load() ([]model.Flashcard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.read()
	if err != nil {
		return nil, err
	}
	return clone(res.cards), nil
}

// Save merges cards into the file. With appendMode the current file is
// re-read under the lock and cards are appended to it; otherwise the file
// is replaced. Saving no cards is a no-op.
func (s *Store) Save(cards []model.Flashcard, appendMode bool) error {
	if len(cards) == 0 {
		return nil
	}

	return s.withLock("save", func() error {
		merged := clone(cards)
		if appendMode {
			res, err := s.read()
			if err != nil {
				return err
			}
			if res.corrupt {
				s.logger.Warn("replacing unreadable card file", "path", s.path, "backup", s.BackupPath())
			}
			merged = append(res.cards, cards...)
		}
		return s.write(merged)
	})
}

// Clean removes cards whose trimmed, lowercased question was already seen,
// keeping the first occurrence in file order. The file is rewritten only
// when something was removed. It returns the number of cards removed.
func (s *Store) Clean() (int, error) {
	removed := 0
	err := s.withLock("clean", func() error {
		res, err := s.read()
		if err != nil {
			return err
		}
		if len(res.cards) == 0 {
			s.logger.Info("no flashcards to clean", "path", s.path)
			return nil
		}

		unique := Dedup(res.cards)
		removed = len(res.cards) - len(unique)
		if removed == 0 {
			return nil
		}
		if err := s.write(unique); err != nil {
			return err
		}
		s.logger.Info("cleaned card file", "before", len(res.cards), "after", len(unique))
		return nil
	})
	return removed, err
}

// Dedup returns cards with repeated questions removed, first occurrence kept.
func Dedup(cards []model.Flashcard) []model.Flashcard {
	seen := make(map[string]bool, len(cards))
	out := make([]model.Flashcard, 0, len(cards))
	for _, c := range cards {
		key := c.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// Import appends the cards found in another card file and returns how many
// were added. Unlike Load, an unparseable source is an error.
func (s *Store) Import(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &Error{Op: "import", Path: path, Err: err}
	}
	var cards []model.Flashcard
	if err := json.Unmarshal(data, &cards); err != nil {
		return 0, &Error{Op: "import", Path: path, Err: fmt.Errorf("parse cards: %w", err)}
	}
	if err := s.Save(cards, true); err != nil {
		return 0, err
	}
	return len(cards), nil
}

func (s *Store) withLock(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &Error{Op: op, Path: s.path, Err: fmt.Errorf("create dir: %w", err)}
		}
	}
	if err := s.lock.Lock(); err != nil {
		return &Error{Op: op, Path: s.path, Err: fmt.Errorf("acquire lock: %w", err)}
	}
	defer s.lock.Unlock()

	return fn()
}

func (s *Store) read() (loadResult, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return loadResult{}, nil
	}
	if err != nil {
		return loadResult{}, &Error{Op: "load", Path: s.path, Err: err}
	}
	var cards []model.Flashcard
	if err := json.Unmarshal(data, &cards); err != nil {
		s.logger.Warn("corrupted card file, treating as empty", "path", s.path, "err", err)
		return loadResult{exists: true, corrupt: true}, nil
	}
	if cards == nil {
		cards = []model.Flashcard{}
	}
	return loadResult{cards: cards, exists: true}, nil
}

// write replaces the card file through a temp file. The previous file is
// kept as the backup before the new one is renamed into place, so a failed
// write leaves the card file untouched.
func (s *Store) write(cards []model.Flashcard) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cards); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}

	if err := s.backup(); err != nil {
		return &Error{Op: "backup", Path: s.path, Err: err}
	}
	if err := rename(tmp.Name(), s.path); err != nil {
		return &Error{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// backup points BackupPath at the current card file, by hard link where the
// filesystem allows it and by copy otherwise.
func (s *Store) backup() error {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	dst := s.BackupPath()
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Link(s.path, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func clone(cards []model.Flashcard) []model.Flashcard {
	if cards == nil {
		return []model.Flashcard{}
	}
	out := make([]model.Flashcard, len(cards))
	copy(out, cards)
	return out
}
