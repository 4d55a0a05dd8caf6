package market

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stockcast/internal/domain"
	"stockcast/internal/store"
)

// Compile-time interface check.
var _ Provider = (*Archived)(nil)

// Archived decorates a Provider with a persistent copy of every year series it
// fetches. When the upstream Year call fails for any reason other than
// ErrNotFound, the archived bars are served instead, provided at least two
// bars fall within the past year.
type Archived struct {
	next    Provider
	archive store.BarArchive
	now     func() time.Time
	log     *slog.Logger
}

// NewArchived wraps next with archive write-through and read fallback.
func NewArchived(next Provider, archive store.BarArchive) *Archived {
	return &Archived{
		next:    next,
		archive: archive,
		now:     time.Now,
		log:     slog.Default().With("component", "market-archive"),
	}
}

// Current passes straight through.
func (a *Archived) Current(ctx context.Context, symbol string, period domain.Period) (*domain.StockData, error) {
	return a.next.Current(ctx, symbol, period)
}

// Year fetches from upstream, archiving on success and falling back to the
// archive on failure.
func (a *Archived) Year(ctx context.Context, symbol string) (*domain.Series, error) {
	s, err := a.next.Year(ctx, symbol)
	if err == nil {
		if werr := a.archive.WriteSeries(ctx, symbol, s.Bars); werr != nil {
			a.log.Warn("archiving year series failed", "symbol", symbol, "error", werr)
		}
		return s, nil
	}
	if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return nil, err
	}

	now := a.now()
	bars, rerr := a.archive.ReadSeries(ctx, symbol, now.Add(-YearLookback), now)
	if rerr != nil || len(bars) < 2 {
		return nil, err
	}
	a.log.Warn("serving archived year series", "symbol", symbol, "bars", len(bars), "error", err)
	return &domain.Series{Symbol: symbol, Period: domain.Period1Y, Bars: bars}, nil
}
