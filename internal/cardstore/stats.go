package cardstore

import (
	"os"
	"time"
)

// Stats holds card file statistics.
type Stats struct {
	Path       string     `json:"path"`
	SizeBytes  int64      `json:"size_bytes"`
	TotalCards int        `json:"total_cards"`
	Duplicates int        `json:"duplicates"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// Stats returns card file statistics.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{Path: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
		mod := info.ModTime().UTC()
		st.ModifiedAt = &mod
	}

	cards, err := s.Load()
	if err != nil {
		return st, err
	}
	st.TotalCards = len(cards)
	st.Duplicates = len(cards) - len(Dedup(cards))
	return st, nil
}
