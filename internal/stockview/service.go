// Package stockview answers stock view requests: it fetches the current
// series, schedules background sentiment, builds chart payloads and, on
// request, a sentiment-adjusted forecast over the requested duration.
package stockview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockcast/internal/chart"
	"stockcast/internal/domain"
	"stockcast/internal/market"
	"stockcast/internal/sentiment"
	"stockcast/internal/symbols"
)

var (
	// ErrInvalidSymbol is returned for symbols not in the known list.
	ErrInvalidSymbol = errors.New("stockview: invalid symbol")
	// ErrInvalidRequest is returned for unsupported durations or chart styles.
	ErrInvalidRequest = errors.New("stockview: invalid request")
	// ErrNotFound is returned when the market source has no data.
	ErrNotFound = errors.New("stockview: symbol not found")
)

// Request describes one stock view.
type Request struct {
	Symbol            string
	Duration          string
	ChartStyle        string
	IncludePrediction bool
	IncludeSentiment  bool
}

// View is the assembled response.
type View struct {
	Symbol          string
	Duration        domain.Period
	Stock           *domain.StockData
	MainChart       *chart.Figure
	PredictionChart *chart.Figure
	Forecast        *domain.ForecastResult
	Sentiment       *domain.SentimentResult
}

// SentimentScheduler is the part of sentiment.Scheduler the service uses.
type SentimentScheduler interface {
	ScheduleIfAbsent(symbol, companyName string) bool
	WaitFor(ctx context.Context, symbol string, timeout time.Duration) (*domain.SentimentResult, bool)
}

// Forecaster is the part of forecast.Engine the service uses.
type Forecaster interface {
	Forecast(ctx context.Context, series *domain.Series, horizon domain.Period) (*domain.ForecastResult, error)
	ForecastWithSentiment(ctx context.Context, series *domain.Series, horizon domain.Period, s *domain.SentimentResult) (*domain.ForecastResult, error)
}

var _ SentimentScheduler = (*sentiment.Scheduler)(nil)

// Service assembles stock views.
type Service struct {
	market     market.Provider
	sentiment  SentimentScheduler
	forecaster Forecaster
	symbols    symbols.Validator
	wait       time.Duration
	log        *slog.Logger
}

// NewService creates a Service. wait bounds how long a request waits for a
// pending sentiment result; non-positive selects sentiment.DefaultWaitTimeout.
func NewService(mp market.Provider, sched SentimentScheduler, fc Forecaster, v symbols.Validator, wait time.Duration) *Service {
	if wait <= 0 {
		wait = sentiment.DefaultWaitTimeout
	}
	return &Service{
		market:     mp,
		sentiment:  sched,
		forecaster: fc,
		symbols:    v,
		wait:       wait,
		log:        slog.Default().With("component", "stockview"),
	}
}

// GetStockView validates req, fetches the current series and builds the
// response. Forecast failures leave the forecast and prediction chart empty
// rather than failing the request.
func (s *Service) GetStockView(ctx context.Context, req Request) (*View, error) {
	symbol := symbols.Normalize(req.Symbol)
	if symbol == "" || (s.symbols != nil && !s.symbols.IsKnown(symbol)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, req.Symbol)
	}
	period, err := domain.ParsePeriod(req.Duration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	style, err := chart.ParseStyle(req.ChartStyle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	data, err := s.market.Current(ctx, symbol, period)
	if errors.Is(err, market.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s %s: %w", symbol, period, err)
	}

	s.sentiment.ScheduleIfAbsent(symbol, data.Quote.CompanyName)

	view := &View{
		Symbol:    symbol,
		Duration:  period,
		Stock:     data,
		MainChart: chart.Main(symbol, &data.Series, style),
	}

	if !req.IncludePrediction {
		if req.IncludeSentiment {
			view.Sentiment, _ = s.sentiment.WaitFor(ctx, symbol, s.wait)
		}
		return view, nil
	}

	year, err := s.market.Year(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching %s year series: %w", symbol, err)
	}

	var fc *domain.ForecastResult
	if req.IncludeSentiment {
		view.Sentiment, _ = s.sentiment.WaitFor(ctx, symbol, s.wait)
		fc, err = s.forecaster.ForecastWithSentiment(ctx, year, period, view.Sentiment)
	} else {
		fc, err = s.forecaster.Forecast(ctx, year, period)
	}
	if err != nil {
		s.log.Warn("forecast failed", "symbol", symbol, "duration", period, "error", err)
		return view, nil
	}
	view.Forecast = fc
	view.PredictionChart = chart.Prediction(symbol, year, fc)
	return view, nil
}
