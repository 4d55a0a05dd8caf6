package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"golang.org/x/sync/errgroup"

	"stockcast/internal/domain"
	"stockcast/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Yahoo)(nil)

// Yahoo fetches series and quote metadata from Yahoo Finance.
type Yahoo struct {
	retries int
	log     *slog.Logger
	now     func() time.Time

	// Upstream calls, replaceable in tests.
	chartBars func(p *chart.Params) ([]finance.ChartBar, error)
	equityGet func(symbol string) (*finance.Equity, error)
}

// NewYahoo creates a Yahoo provider that retries each upstream call up to
// retries times.
func NewYahoo(retries int) *Yahoo {
	return &Yahoo{
		retries:   max(retries, 1),
		log:       slog.Default().With("component", "market", "source", "yahoo"),
		now:       time.Now,
		chartBars: fetchChartBars,
		equityGet: equity.Get,
	}
}

func fetchChartBars(p *chart.Params) ([]finance.ChartBar, error) {
	iter := chart.Get(p)
	var bars []finance.ChartBar
	for iter.Next() {
		bars = append(bars, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// yahooInterval maps a bar spacing onto a Yahoo chart interval.
func yahooInterval(d time.Duration) datetime.Interval {
	switch d {
	case 5 * time.Minute:
		return datetime.FiveMins
	case 15 * time.Minute:
		return datetime.FifteenMins
	case time.Hour:
		return datetime.OneHour
	default:
		return datetime.OneDay
	}
}

// Current fetches the series for period and the quote concurrently.
func (y *Yahoo) Current(ctx context.Context, symbol string, period domain.Period) (*domain.StockData, error) {
	var (
		bars []domain.Bar
		eq   *finance.Equity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bars, err = y.series(gctx, symbol, period.Interval(), period.Lookback())
		return err
	})
	g.Go(func() error {
		return util.Retry(gctx, y.retries, 500*time.Millisecond, func() error {
			e, err := y.equityGet(symbol)
			if err != nil {
				return fmt.Errorf("quote %s: %w", symbol, err)
			}
			eq = e
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.StockData{
		Symbol: symbol,
		Quote:  quoteFromEquity(symbol, eq, bars),
		Series: domain.Series{Symbol: symbol, Period: period, Bars: bars},
	}, nil
}

// Year fetches daily bars for the past year.
func (y *Yahoo) Year(ctx context.Context, symbol string) (*domain.Series, error) {
	bars, err := y.series(ctx, symbol, 24*time.Hour, YearLookback)
	if err != nil {
		return nil, err
	}
	return &domain.Series{Symbol: symbol, Period: domain.Period1Y, Bars: bars}, nil
}

func (y *Yahoo) series(ctx context.Context, symbol string, interval, lookback time.Duration) ([]domain.Bar, error) {
	start, end := fetchWindow(y.now(), lookback)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: yahooInterval(interval),
	}

	var raw []finance.ChartBar
	err := util.Retry(ctx, y.retries, 500*time.Millisecond, func() error {
		b, err := y.chartBars(params)
		if err != nil {
			if isYahooNotFound(err) {
				return util.Permanent(fmt.Errorf("%w: %s", ErrNotFound, symbol))
			}
			return fmt.Errorf("chart %s: %w", symbol, err)
		}
		raw = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	bars := convertChartBars(raw)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	y.log.Debug("fetched series", "symbol", symbol, "interval", interval, "bars", len(bars))
	return normalizeBars(bars, lookback), nil
}

func isYahooNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no data found") || strings.Contains(msg, "not found")
}

// convertChartBars converts Yahoo bars, skipping incomplete rows where the
// close is missing.
func convertChartBars(raw []finance.ChartBar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(raw))
	for _, rb := range raw {
		closePx, _ := rb.Close.Float64()
		if closePx == 0 {
			continue
		}
		open, _ := rb.Open.Float64()
		high, _ := rb.High.Float64()
		low, _ := rb.Low.Float64()
		bars = append(bars, domain.Bar{
			Timestamp: time.Unix(int64(rb.Timestamp), 0).UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePx,
			Volume:    ptr(int64(rb.Volume)),
		})
	}
	return bars
}

// quoteFromEquity builds quote metadata, falling back to the series for the
// current price when Yahoo omits it.
func quoteFromEquity(symbol string, e *finance.Equity, bars []domain.Bar) domain.Quote {
	q := domain.Quote{CompanyName: symbol}
	if n := len(bars); n > 0 {
		q.CurrentPrice = bars[n-1].Close
	}
	if e == nil {
		return q
	}

	switch {
	case e.LongName != "":
		q.CompanyName = e.LongName
	case e.ShortName != "":
		q.CompanyName = e.ShortName
	}
	if e.RegularMarketPrice > 0 {
		q.CurrentPrice = e.RegularMarketPrice
	}
	if prev := e.RegularMarketPreviousClose; prev > 0 {
		q.PreviousClose = ptr(prev)
		q.Change = ptr(q.CurrentPrice - prev)
		q.ChangePercent = ptr((q.CurrentPrice - prev) / prev * 100)
	}
	q.Open = nonZero(e.RegularMarketOpen)
	q.High = nonZero(e.RegularMarketDayHigh)
	q.Low = nonZero(e.RegularMarketDayLow)
	q.Volume = nonZero(int64(e.RegularMarketVolume))
	q.MarketCap = nonZero(float64(e.MarketCap))
	q.PERatio = nonZero(e.TrailingPE)
	q.DividendYield = nonZero(e.TrailingAnnualDividendYield)
	q.FiftyTwoWeekHigh = nonZero(e.FiftyTwoWeekHigh)
	q.FiftyTwoWeekLow = nonZero(e.FiftyTwoWeekLow)
	return q
}
