package history

import (
	"context"
	"os"
)

// Stats holds history database statistics.
type Stats struct {
	DBPath      string        `json:"db_path"`
	DBSizeBytes int64         `json:"db_size_bytes"`
	TotalRuns   int           `json:"total_runs"`
	FailedRuns  int           `json:"failed_runs"`
	TotalCards  int           `json:"total_cards"`
	Completions int           `json:"cached_completions"`
	CacheHits   int           `json:"cache_hits"`
	Sources     []SourceStats `json:"sources"`
}

// SourceStats holds per-source-type counts.
type SourceStats struct {
	SourceType string `json:"source_type"`
	Runs       int    `json:"runs"`
	Cards      int    `json:"cards"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(cards), 0) FROM runs`).Scan(&st.TotalRuns, &st.TotalCards)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE error IS NOT NULL`).Scan(&st.FailedRuns)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM completions`).Scan(&st.Completions, &st.CacheHits)

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, COUNT(*) as cnt, COALESCE(SUM(cards), 0)
		FROM runs
		GROUP BY source_type ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ss SourceStats
		rows.Scan(&ss.SourceType, &ss.Runs, &ss.Cards)
		st.Sources = append(st.Sources, ss)
	}

	return st, nil
}
