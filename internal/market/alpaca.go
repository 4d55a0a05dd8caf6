package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/sync/errgroup"

	"stockcast/internal/domain"
	"stockcast/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Alpaca)(nil)

// alpacaData is the subset of *marketdata.Client used here.
type alpacaData interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// alpacaAssets is the subset of *alpaca.Client used here.
type alpacaAssets interface {
	GetAsset(symbol string) (*alpaca.Asset, error)
}

// Alpaca fetches series from the Alpaca market-data API and the company name
// from the trading API's asset endpoint.
type Alpaca struct {
	data    alpacaData
	assets  alpacaAssets
	feed    string
	retries int
	now     func() time.Time
	log     *slog.Logger
}

// NewAlpaca creates an Alpaca provider configured with the given credentials.
// Empty URLs select the SDK defaults.
func NewAlpaca(apiKey, apiSecret, baseURL, dataURL, feed string, retries int) *Alpaca {
	dataOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		dataOpts.BaseURL = dataURL
	}
	tradeOpts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		tradeOpts.BaseURL = baseURL
	}
	return newAlpaca(marketdata.NewClient(dataOpts), alpaca.NewClient(tradeOpts), feed, retries)
}

func newAlpaca(data alpacaData, assets alpacaAssets, feed string, retries int) *Alpaca {
	return &Alpaca{
		data:    data,
		assets:  assets,
		feed:    feed,
		retries: max(retries, 1),
		now:     time.Now,
		log:     slog.Default().With("component", "market", "source", "alpaca"),
	}
}

// alpacaTimeFrame maps a bar spacing onto an Alpaca timeframe.
func alpacaTimeFrame(d time.Duration) marketdata.TimeFrame {
	switch d {
	case 5 * time.Minute:
		return marketdata.NewTimeFrame(5, marketdata.Min)
	case 15 * time.Minute:
		return marketdata.NewTimeFrame(15, marketdata.Min)
	case time.Hour:
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}

// Current fetches the series for period, the latest snapshot and the asset
// name concurrently. Snapshot and asset failures degrade the quote rather than
// failing the call.
func (a *Alpaca) Current(ctx context.Context, symbol string, period domain.Period) (*domain.StockData, error) {
	var (
		bars []domain.Bar
		snap *marketdata.Snapshot
		name string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bars, err = a.series(gctx, symbol, period.Interval(), period.Lookback())
		return err
	})
	g.Go(func() error {
		s, err := a.data.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(a.feed)})
		if err != nil {
			a.log.Warn("snapshot unavailable", "symbol", symbol, "error", err)
			return nil
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		asset, err := a.assets.GetAsset(symbol)
		if err != nil {
			a.log.Warn("asset lookup failed", "symbol", symbol, "error", err)
			return nil
		}
		name = asset.Name
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.StockData{
		Symbol: symbol,
		Quote:  quoteFromSnapshot(symbol, name, snap, bars),
		Series: domain.Series{Symbol: symbol, Period: period, Bars: bars},
	}, nil
}

// Year fetches daily bars for the past year.
func (a *Alpaca) Year(ctx context.Context, symbol string) (*domain.Series, error) {
	bars, err := a.series(ctx, symbol, 24*time.Hour, YearLookback)
	if err != nil {
		return nil, err
	}
	return &domain.Series{Symbol: symbol, Period: domain.Period1Y, Bars: bars}, nil
}

func (a *Alpaca) series(ctx context.Context, symbol string, interval, lookback time.Duration) ([]domain.Bar, error) {
	start, end := fetchWindow(a.now(), lookback)
	req := marketdata.GetBarsRequest{
		TimeFrame:  alpacaTimeFrame(interval),
		Start:      start,
		End:        end,
		Adjustment: marketdata.All,
		Feed:       marketdata.Feed(a.feed),
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, a.retries, 500*time.Millisecond, func() error {
		b, err := a.data.GetBars(symbol, req)
		if err != nil {
			return fmt.Errorf("GetBars %s: %w", symbol, err)
		}
		raw = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    ptr(int64(ab.Volume)),
		})
	}
	return normalizeBars(bars, lookback), nil
}

func quoteFromSnapshot(symbol, name string, s *marketdata.Snapshot, bars []domain.Bar) domain.Quote {
	q := domain.Quote{CompanyName: symbol}
	if name != "" {
		q.CompanyName = name
	}
	if n := len(bars); n > 0 {
		q.CurrentPrice = bars[n-1].Close
	}
	if s == nil {
		return q
	}

	if s.LatestTrade != nil && s.LatestTrade.Price > 0 {
		q.CurrentPrice = s.LatestTrade.Price
	}
	if d := s.DailyBar; d != nil {
		q.Open = nonZero(d.Open)
		q.High = nonZero(d.High)
		q.Low = nonZero(d.Low)
		q.Volume = nonZero(int64(d.Volume))
	}
	if p := s.PrevDailyBar; p != nil && p.Close > 0 {
		q.PreviousClose = ptr(p.Close)
		q.Change = ptr(q.CurrentPrice - p.Close)
		q.ChangePercent = ptr((q.CurrentPrice - p.Close) / p.Close * 100)
	}
	return q
}
