package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"stockcast/internal/domain"
	"stockcast/internal/store"
)

var t0 = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

func dailyBars(n int, start time.Time) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return bars
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func TestNormalizeBars(t *testing.T) {
	bars := []domain.Bar{
		{Timestamp: t0.Add(2 * time.Hour), Close: 3},
		{Timestamp: t0, Close: 1},
		{Timestamp: t0.Add(time.Hour), Close: 2},
		{Timestamp: t0.Add(time.Hour), Close: 22},
		{Timestamp: t0.Add(-48 * time.Hour), Close: 0.5},
	}
	got := normalizeBars(bars, 24*time.Hour)
	if len(got) != 3 {
		t.Fatalf("normalizeBars len = %d, want 3: %+v", len(got), got)
	}
	want := []float64{1, 22, 3}
	for i, w := range want {
		if got[i].Close != w {
			t.Errorf("bar %d Close = %v, want %v", i, got[i].Close, w)
		}
	}
	if bars[0].Close != 3 {
		t.Error("normalizeBars mutated its input")
	}
	if normalizeBars(nil, time.Hour) != nil {
		t.Error("normalizeBars(nil) should be nil")
	}
}

func TestNonZero(t *testing.T) {
	if nonZero(0.0) != nil {
		t.Error("nonZero(0) should be nil")
	}
	if p := nonZero(int64(7)); p == nil || *p != 7 {
		t.Errorf("nonZero(7) = %v", p)
	}
}

// ---------------------------------------------------------------------------
// Yahoo
// ---------------------------------------------------------------------------

func chartBar(ts time.Time, close float64, volume int) finance.ChartBar {
	return finance.ChartBar{
		Open:      decimal.NewFromFloat(close - 1),
		High:      decimal.NewFromFloat(close + 1),
		Low:       decimal.NewFromFloat(close - 2),
		Close:     decimal.NewFromFloat(close),
		AdjClose:  decimal.NewFromFloat(close),
		Volume:    volume,
		Timestamp: int(ts.Unix()),
	}
}

func newTestYahoo(bars []finance.ChartBar, chartErr error, eq *finance.Equity) (*Yahoo, *int) {
	calls := 0
	y := NewYahoo(3)
	y.now = func() time.Time { return t0 }
	y.chartBars = func(p *chart.Params) ([]finance.ChartBar, error) {
		calls++
		return bars, chartErr
	}
	y.equityGet = func(string) (*finance.Equity, error) { return eq, nil }
	return y, &calls
}

func TestYahooCurrent(t *testing.T) {
	eq := &finance.Equity{LongName: "Apple Inc.", MarketCap: 3_000_000_000_000, TrailingPE: 30}
	eq.RegularMarketPrice = 195
	eq.RegularMarketPreviousClose = 190
	eq.RegularMarketVolume = 1000
	eq.FiftyTwoWeekHigh = 200

	raw := []finance.ChartBar{
		chartBar(t0.AddDate(0, 0, -2), 191, 10),
		chartBar(t0.AddDate(0, 0, -1), 0, 0), // missing close
		chartBar(t0, 194, 12),
	}
	y, _ := newTestYahoo(raw, nil, eq)

	got, err := y.Current(context.Background(), "AAPL", domain.Period3M)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Series.Len() != 2 {
		t.Fatalf("series len = %d, want 2", got.Series.Len())
	}
	if got.Series.Period != domain.Period3M {
		t.Errorf("series period = %q", got.Series.Period)
	}
	b := got.Series.Bars[1]
	if b.Close != 194 || b.High != 195 || b.Low != 192 || b.Open != 193 {
		t.Errorf("last bar = %+v", b)
	}
	if b.Volume == nil || *b.Volume != 12 {
		t.Errorf("last bar volume = %v, want 12", b.Volume)
	}

	q := got.Quote
	if q.CompanyName != "Apple Inc." {
		t.Errorf("CompanyName = %q", q.CompanyName)
	}
	if q.CurrentPrice != 195 {
		t.Errorf("CurrentPrice = %v, want 195", q.CurrentPrice)
	}
	if q.Change == nil || *q.Change != 5 {
		t.Errorf("Change = %v, want 5", q.Change)
	}
	if q.ChangePercent == nil || math.Abs(*q.ChangePercent-5.0/190*100) > 1e-9 {
		t.Errorf("ChangePercent = %v", q.ChangePercent)
	}
	if q.MarketCap == nil || *q.MarketCap != 3e12 {
		t.Errorf("MarketCap = %v", q.MarketCap)
	}
	if q.DividendYield != nil {
		t.Errorf("DividendYield = %v, want nil", *q.DividendYield)
	}
	if q.FiftyTwoWeekHigh == nil || *q.FiftyTwoWeekHigh != 200 {
		t.Errorf("FiftyTwoWeekHigh = %v", q.FiftyTwoWeekHigh)
	}
}

func TestYahooQuoteFallsBackToSeries(t *testing.T) {
	q := quoteFromEquity("XYZ", nil, []domain.Bar{{Timestamp: t0, Close: 12.5}})
	if q.CompanyName != "XYZ" || q.CurrentPrice != 12.5 {
		t.Errorf("quote = %+v", q)
	}
	if q.PreviousClose != nil || q.Change != nil {
		t.Errorf("expected nil previous close and change, got %+v", q)
	}
}

func TestYahooNotFound(t *testing.T) {
	y, calls := newTestYahoo(nil, errors.New("remote-error: No data found, symbol may be delisted"), nil)
	_, err := y.Year(context.Background(), "ZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Year error = %v, want ErrNotFound", err)
	}
	if *calls != 1 {
		t.Errorf("chart called %d times, want 1 (no retry on not found)", *calls)
	}

	y, _ = newTestYahoo(nil, nil, nil)
	if _, err := y.Year(context.Background(), "ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Year with empty chart = %v, want ErrNotFound", err)
	}
}

func TestYahooYearWindow(t *testing.T) {
	var seen *chart.Params
	y := NewYahoo(1)
	y.now = func() time.Time { return t0 }
	y.chartBars = func(p *chart.Params) ([]finance.ChartBar, error) {
		seen = p
		return []finance.ChartBar{chartBar(t0.AddDate(-1, 0, -3), 90, 1), chartBar(t0.AddDate(0, 0, -1), 100, 1), chartBar(t0, 101, 1)}, nil
	}
	s, err := y.Year(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Year: %v", err)
	}
	if seen.Interval != datetime.OneDay {
		t.Errorf("Interval = %v, want %v", seen.Interval, datetime.OneDay)
	}
	if s.Len() != 2 {
		t.Errorf("Year len = %d, want 2 (bars older than a year trimmed)", s.Len())
	}
	if s.Period != domain.Period1Y {
		t.Errorf("Year period = %q", s.Period)
	}
}

func TestYahooInterval(t *testing.T) {
	tests := []struct {
		period domain.Period
		want   datetime.Interval
	}{
		{domain.Period1D, datetime.FiveMins},
		{domain.Period1W, datetime.FifteenMins},
		{domain.Period1M, datetime.OneHour},
		{domain.Period6M, datetime.OneDay},
	}
	for _, tt := range tests {
		if got := yahooInterval(tt.period.Interval()); got != tt.want {
			t.Errorf("yahooInterval(%s) = %v, want %v", tt.period, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Alpaca
// ---------------------------------------------------------------------------

type fakeAlpacaData struct {
	bars    []marketdata.Bar
	barsErr error
	snap    *marketdata.Snapshot
	lastReq marketdata.GetBarsRequest
	mu      sync.Mutex
}

func (f *fakeAlpacaData) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	return f.bars, f.barsErr
}

func (f *fakeAlpacaData) GetSnapshot(string, marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	if f.snap == nil {
		return nil, errors.New("no snapshot")
	}
	return f.snap, nil
}

type fakeAssets struct{ name string }

func (f fakeAssets) GetAsset(symbol string) (*alpaca.Asset, error) {
	if f.name == "" {
		return nil, fmt.Errorf("asset %s not found", symbol)
	}
	return &alpaca.Asset{Symbol: symbol, Name: f.name}, nil
}

func TestAlpacaCurrent(t *testing.T) {
	data := &fakeAlpacaData{
		bars: []marketdata.Bar{
			{Timestamp: t0.Add(-time.Hour), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
			{Timestamp: t0, Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
		},
		snap: &marketdata.Snapshot{
			LatestTrade:  &marketdata.Trade{Price: 2.1},
			DailyBar:     &marketdata.Bar{Open: 1, High: 2.5, Low: 0.5, Volume: 300},
			PrevDailyBar: &marketdata.Bar{Close: 2},
		},
	}
	a := newAlpaca(data, fakeAssets{name: "Apple Inc. Common Stock"}, "iex", 1)
	a.now = func() time.Time { return t0 }

	got, err := a.Current(context.Background(), "AAPL", domain.Period1M)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Series.Len() != 2 {
		t.Fatalf("series len = %d, want 2", got.Series.Len())
	}
	if data.lastReq.TimeFrame != marketdata.OneHour {
		t.Errorf("TimeFrame = %v, want OneHour", data.lastReq.TimeFrame)
	}
	if got.Quote.CompanyName != "Apple Inc. Common Stock" {
		t.Errorf("CompanyName = %q", got.Quote.CompanyName)
	}
	if got.Quote.CurrentPrice != 2.1 {
		t.Errorf("CurrentPrice = %v, want 2.1", got.Quote.CurrentPrice)
	}
	if got.Quote.PreviousClose == nil || *got.Quote.PreviousClose != 2 {
		t.Errorf("PreviousClose = %v", got.Quote.PreviousClose)
	}
	if got.Quote.Volume == nil || *got.Quote.Volume != 300 {
		t.Errorf("Volume = %v", got.Quote.Volume)
	}
}

func TestAlpacaDegradedQuote(t *testing.T) {
	data := &fakeAlpacaData{bars: []marketdata.Bar{{Timestamp: t0, Close: 5}}}
	a := newAlpaca(data, fakeAssets{}, "iex", 1)
	a.now = func() time.Time { return t0 }

	got, err := a.Current(context.Background(), "MSFT", domain.Period1D)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if got.Quote.CompanyName != "MSFT" || got.Quote.CurrentPrice != 5 {
		t.Errorf("quote = %+v, want symbol name and series close", got.Quote)
	}
	if tf := data.lastReq.TimeFrame; tf != marketdata.NewTimeFrame(5, marketdata.Min) {
		t.Errorf("TimeFrame = %v, want 5Min", tf)
	}
}

func TestAlpacaEmptyIsNotFound(t *testing.T) {
	a := newAlpaca(&fakeAlpacaData{}, fakeAssets{}, "iex", 1)
	if _, err := a.Year(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Year error = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Cached
// ---------------------------------------------------------------------------

type countingProvider struct {
	mu          sync.Mutex
	currentHits int
	yearHits    int
	err         error
}

func (p *countingProvider) Current(_ context.Context, symbol string, period domain.Period) (*domain.StockData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentHits++
	if p.err != nil {
		return nil, p.err
	}
	return &domain.StockData{Symbol: symbol, Series: domain.Series{Symbol: symbol, Period: period}}, nil
}

func (p *countingProvider) Year(_ context.Context, symbol string) (*domain.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.yearHits++
	if p.err != nil {
		return nil, p.err
	}
	return &domain.Series{Symbol: symbol, Period: domain.Period1Y, Bars: dailyBars(3, t0)}, nil
}

func TestCachedTTL(t *testing.T) {
	next := &countingProvider{}
	c := NewCached(next, 5*time.Minute, time.Hour, time.Minute)
	now := t0
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for range 3 {
		if _, err := c.Current(ctx, "aapl", domain.Period1D); err != nil {
			t.Fatalf("Current: %v", err)
		}
	}
	if next.currentHits != 1 {
		t.Errorf("upstream Current calls = %d, want 1", next.currentHits)
	}

	// Different period is a different key.
	c.Current(ctx, "AAPL", domain.Period1W)
	if next.currentHits != 2 {
		t.Errorf("upstream Current calls = %d, want 2", next.currentHits)
	}

	now = now.Add(5 * time.Minute)
	c.Current(ctx, "AAPL", domain.Period1D)
	if next.currentHits != 3 {
		t.Errorf("upstream Current calls after expiry = %d, want 3", next.currentHits)
	}

	c.Year(ctx, "AAPL")
	now = now.Add(59 * time.Minute)
	c.Year(ctx, "AAPL")
	if next.yearHits != 1 {
		t.Errorf("upstream Year calls = %d, want 1", next.yearHits)
	}
	now = now.Add(time.Minute)
	c.Year(ctx, "AAPL")
	if next.yearHits != 2 {
		t.Errorf("upstream Year calls after expiry = %d, want 2", next.yearHits)
	}

	c.Purge()
	c.Year(ctx, "AAPL")
	if next.yearHits != 3 {
		t.Errorf("upstream Year calls after Purge = %d, want 3", next.yearHits)
	}
}

func TestCachedNegative(t *testing.T) {
	next := &countingProvider{err: fmt.Errorf("%w: ZZZZ", ErrNotFound)}
	c := NewCached(next, 5*time.Minute, time.Hour, time.Minute)
	now := t0
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for range 2 {
		if _, err := c.Year(ctx, "ZZZZ"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Year error = %v, want ErrNotFound", err)
		}
	}
	if next.yearHits != 1 {
		t.Errorf("upstream Year calls = %d, want 1 (negative cached)", next.yearHits)
	}

	now = now.Add(time.Minute)
	c.Year(ctx, "ZZZZ")
	if next.yearHits != 2 {
		t.Errorf("upstream Year calls after negative expiry = %d, want 2", next.yearHits)
	}
}

func TestCachedDoesNotCacheTransientErrors(t *testing.T) {
	next := &countingProvider{err: errors.New("upstream 503")}
	c := NewCached(next, 5*time.Minute, time.Hour, time.Minute)
	ctx := context.Background()
	c.Current(ctx, "AAPL", domain.Period1D)
	c.Current(ctx, "AAPL", domain.Period1D)
	if next.currentHits != 2 {
		t.Errorf("upstream Current calls = %d, want 2", next.currentHits)
	}

	disabled := NewCached(&countingProvider{err: ErrNotFound}, time.Minute, time.Minute, 0)
	disabled.Year(ctx, "X")
	disabled.Year(ctx, "X")
	if hits := disabled.next.(*countingProvider).yearHits; hits != 2 {
		t.Errorf("upstream Year calls with negative caching disabled = %d, want 2", hits)
	}
}

// ---------------------------------------------------------------------------
// Archived
// ---------------------------------------------------------------------------

type scriptedYear struct {
	series *domain.Series
	err    error
}

func (s *scriptedYear) Current(context.Context, string, domain.Period) (*domain.StockData, error) {
	return nil, errors.New("not used")
}

func (s *scriptedYear) Year(context.Context, string) (*domain.Series, error) {
	return s.series, s.err
}

func TestArchivedFallback(t *testing.T) {
	archive := store.NewParquetStore(t.TempDir())
	now := time.Now().UTC().Truncate(24 * time.Hour)
	fresh := &domain.Series{Symbol: "AAPL", Period: domain.Period1Y, Bars: dailyBars(5, now.AddDate(0, 0, -5))}

	up := &scriptedYear{series: fresh}
	a := NewArchived(up, archive)
	ctx := context.Background()

	if _, err := a.Year(ctx, "AAPL"); err != nil {
		t.Fatalf("Year (upstream ok): %v", err)
	}

	up.series, up.err = nil, errors.New("connection reset")
	got, err := a.Year(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Year (fallback): %v", err)
	}
	if got.Len() != 5 || got.Bars[4].Close != 104 {
		t.Errorf("fallback series = %+v", got.Bars)
	}

	up.err = fmt.Errorf("%w: AAPL", ErrNotFound)
	if _, err := a.Year(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Year with ErrNotFound = %v, want ErrNotFound (no fallback)", err)
	}

	up.err = errors.New("timeout")
	if _, err := a.Year(ctx, "MSFT"); err == nil || err.Error() != "timeout" {
		t.Errorf("Year for unarchived symbol = %v, want upstream error", err)
	}
}
