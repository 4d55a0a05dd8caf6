package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockcast/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SentimentHistory = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS sentiment_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT    NOT NULL,
	computed_at INTEGER NOT NULL,
	score       REAL    NOT NULL,
	label       TEXT    NOT NULL,
	confidence  REAL    NOT NULL,
	positive    REAL    NOT NULL,
	negative    REAL    NOT NULL,
	neutral     REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentiment_symbol_time
	ON sentiment_history (symbol, computed_at DESC);
`

// SQLiteStore implements SentimentHistory backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordSentiment inserts one sentiment result.
func (s *SQLiteStore) RecordSentiment(ctx context.Context, symbol string, at time.Time, r domain.SentimentResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sentiment_history
			(symbol, computed_at, score, label, confidence, positive, negative, neutral)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToUpper(symbol), at.UnixMilli(), r.Score, string(r.Label), r.Confidence,
		r.Details.Positive, r.Details.Negative, r.Details.Neutral,
	)
	if err != nil {
		return fmt.Errorf("recording sentiment for %s: %w", symbol, err)
	}
	return nil
}

// ListSentiment returns the most recent results for symbol, up to limit.
func (s *SQLiteStore) ListSentiment(ctx context.Context, symbol string, limit int) ([]SentimentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, computed_at, score, label, confidence, positive, negative, neutral
		   FROM sentiment_history
		  WHERE symbol = ?
		  ORDER BY computed_at DESC, id DESC
		  LIMIT ?`,
		strings.ToUpper(symbol), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sentiment for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []SentimentRecord
	for rows.Next() {
		var (
			rec   SentimentRecord
			ms    int64
			label string
		)
		if err := rows.Scan(&rec.Symbol, &ms, &rec.Result.Score, &label, &rec.Result.Confidence,
			&rec.Result.Details.Positive, &rec.Result.Details.Negative, &rec.Result.Details.Neutral); err != nil {
			return nil, err
		}
		rec.ComputedAt = time.UnixMilli(ms).UTC()
		rec.Result.Label = domain.SentimentLabel(label)
		out = append(out, rec)
	}
	return out, rows.Err()
}
