// Package store defines storage interfaces for persisting price series and
// sentiment results, with Parquet and SQLite implementations.
package store

import (
	"context"
	"time"

	"stockcast/internal/domain"
)

// BarArchive persists and retrieves daily OHLCV bars per symbol.
type BarArchive interface {
	// WriteSeries merges bars for symbol into storage.
	WriteSeries(ctx context.Context, symbol string, bars []domain.Bar) error

	// ReadSeries returns bars for symbol within [start, end], oldest first.
	ReadSeries(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all archived symbols.
	ListSymbols(ctx context.Context) ([]string, error)
}

// SentimentRecord is one stored sentiment computation.
type SentimentRecord struct {
	Symbol     string                 `json:"symbol"`
	ComputedAt time.Time              `json:"computed_at"`
	Result     domain.SentimentResult `json:"result"`
}

// SentimentHistory persists computed sentiment results.
type SentimentHistory interface {
	// RecordSentiment appends a result for symbol computed at the given time.
	RecordSentiment(ctx context.Context, symbol string, at time.Time, result domain.SentimentResult) error

	// ListSentiment returns up to limit records for symbol, newest first.
	ListSentiment(ctx context.Context, symbol string, limit int) ([]SentimentRecord, error)
}
