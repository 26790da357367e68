package orchestrator

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"
)

// #region schema

const strategyOutcomesSchema = `
CREATE TABLE IF NOT EXISTS strategy_outcomes (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    TEXT NOT NULL,
    language      TEXT NOT NULL,
    length_class  TEXT NOT NULL,
    coverage      TEXT NOT NULL,
    strategy_id   TEXT NOT NULL,
    attempt_num   INTEGER NOT NULL,
    quality       REAL NOT NULL,
    failure_type  TEXT NOT NULL DEFAULT 'none',
    score         REAL NOT NULL,
    accepted      INTEGER NOT NULL DEFAULT 0,
    created_unix  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strategy_outcomes_class
ON strategy_outcomes(language, length_class, accepted);
`

const (
	// Outcome weight halves every week.
	decayHalfLife = 7 * 24 * time.Hour
	// Accepted samples a strategy needs before it is trusted.
	minSamples = 3
)

// #endregion

// #region memory

// StrategyMemory keeps attempt outcomes per (language, length class) and
// ranks strategies by time-decayed quality.
type StrategyMemory struct {
	db  *sql.DB
	now func() time.Time
}

// NewStrategyMemory creates the strategy_outcomes table in db if needed.
func NewStrategyMemory(db *sql.DB) (*StrategyMemory, error) {
	if _, err := db.Exec(strategyOutcomesSchema); err != nil {
		return nil, fmt.Errorf("init strategy_outcomes: %w", err)
	}
	return &StrategyMemory{db: db, now: time.Now}, nil
}

// RecordOutcomes stores the attempts of one ciphertext in a single
// transaction.
func (m *StrategyMemory) RecordOutcomes(recs []OutcomeRecord) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO strategy_outcomes
		(session_id, language, length_class, coverage, strategy_id, attempt_num,
		 quality, failure_type, score, accepted, created_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		created := rec.CreatedAt
		if created.IsZero() {
			created = m.now()
		}
		_, err := stmt.Exec(
			rec.SessionID, rec.Language, string(rec.Length), string(rec.Coverage),
			string(rec.StrategyID), rec.AttemptNum, rec.Quality, string(rec.FailureType),
			rec.Score, rec.Accepted, created.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
	}
	return tx.Commit()
}

// #endregion

// #region ranking

// StrategyStat is a strategy's decayed quality over its accepted samples.
type StrategyStat struct {
	Strategy StrategyID
	Samples  int
	Quality  float64
}

// Stats ranks the strategies accepted for language and length class, best
// first. Ties break on strategy name.
func (m *StrategyMemory) Stats(language, length string) ([]StrategyStat, error) {
	rows, err := m.db.Query(`
		SELECT strategy_id, quality, created_unix
		FROM strategy_outcomes
		WHERE language = ? AND length_class = ? AND accepted = 1`,
		language, length,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	type sums struct {
		weighted, weight float64
		n                int
	}
	now := m.now()
	by := make(map[StrategyID]*sums)
	for rows.Next() {
		var (
			sid     string
			quality float64
			created int64
		)
		if err := rows.Scan(&sid, &quality, &created); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		age := now.Sub(time.Unix(created, 0))
		if age < 0 {
			age = 0
		}
		w := math.Exp2(-float64(age) / float64(decayHalfLife))
		s := by[StrategyID(sid)]
		if s == nil {
			s = &sums{}
			by[StrategyID(sid)] = s
		}
		s.weighted += quality * w
		s.weight += w
		s.n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]StrategyStat, 0, len(by))
	for sid, s := range by {
		stats = append(stats, StrategyStat{Strategy: sid, Samples: s.n, Quality: s.weighted / s.weight})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Quality != stats[j].Quality {
			return stats[i].Quality > stats[j].Quality
		}
		return stats[i].Strategy < stats[j].Strategy
	})
	return stats, nil
}

// BestStrategy returns the top-ranked strategy with at least minSamples
// accepted runs, or "" when none qualifies.
func (m *StrategyMemory) BestStrategy(language, length string) (StrategyID, float64, error) {
	stats, err := m.Stats(language, length)
	if err != nil {
		return "", 0, err
	}
	for _, s := range stats {
		if s.Samples >= minSamples {
			return s.Strategy, s.Quality, nil
		}
	}
	return "", 0, nil
}

// #endregion
