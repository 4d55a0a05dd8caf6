// Package market fetches historical price series and quote metadata for a
// symbol. Yahoo and Alpaca back the Provider interface; Cached and Archived
// decorate any Provider with TTL caching and a Parquet fallback.
package market

import (
	"context"
	"errors"
	"sort"
	"time"

	"stockcast/internal/domain"
)

// ErrNotFound is returned when the upstream source has no data for a symbol.
var ErrNotFound = errors.New("market: no data for symbol")

// YearLookback is the span of the daily series returned by Provider.Year.
const YearLookback = 365 * 24 * time.Hour

// fetchSlack widens upstream requests so weekends and holidays still yield a
// full window; results are trimmed back to the look-back afterwards.
const fetchSlack = 4 * 24 * time.Hour

// Provider supplies price data for a symbol.
type Provider interface {
	// Current returns the series for period together with quote metadata.
	Current(ctx context.Context, symbol string, period domain.Period) (*domain.StockData, error)

	// Year returns daily bars covering the past year.
	Year(ctx context.Context, symbol string) (*domain.Series, error)
}

// fetchWindow returns the upstream request range for a look-back ending now.
func fetchWindow(now time.Time, lookback time.Duration) (start, end time.Time) {
	return now.Add(-lookback - fetchSlack), now
}

// normalizeBars sorts bars by time, drops duplicate timestamps (last wins)
// and keeps only those within lookback of the newest bar.
func normalizeBars(bars []domain.Bar, lookback time.Duration) []domain.Bar {
	if len(bars) == 0 {
		return nil
	}
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}

	cutoff := out[len(out)-1].Timestamp.Add(-lookback)
	first := sort.Search(len(out), func(i int) bool {
		return out[i].Timestamp.After(cutoff)
	})
	return out[first:]
}

func ptr[T any](v T) *T { return &v }

// nonZero returns a pointer to v, or nil when v is zero. Upstream sources
// report absent fields as zero.
func nonZero[T int64 | float64](v T) *T {
	if v == 0 {
		return nil
	}
	return &v
}
