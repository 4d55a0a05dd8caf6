// Package forecast projects price series forward with a piecewise-linear
// trend and Fourier seasonalities, and optionally rescales the projection by
// a news sentiment score.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"stockcast/internal/domain"
)

var (
	// ErrInsufficientHistory is returned when fewer than two distinct
	// historical points are available.
	ErrInsufficientHistory = errors.New("forecast: insufficient history")
	// ErrUnsupportedHorizon is returned for durations without a forecast grid.
	ErrUnsupportedHorizon = errors.New("forecast: unsupported horizon")
)

// Default engine parameters.
const (
	DefaultIntervalWidth = 0.8
	DefaultSamples       = 300
	DefaultSeed          = 20240101
)

// Engine fits and projects series. It is safe for concurrent use and
// deterministic for identical input.
type Engine struct {
	loc           *time.Location
	intervalWidth float64
	samples       int
	seed          uint64
	log           *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the reference location in which timestamps are read as
// civil times. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithIntervalWidth sets the coverage of the uncertainty interval.
func WithIntervalWidth(w float64) Option {
	return func(e *Engine) {
		if w > 0 && w < 1 {
			e.intervalWidth = w
		}
	}
}

// WithSamples sets how many simulations build the interval.
func WithSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.samples = n
		}
	}
}

// WithSeed fixes the simulation seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		if seed != 0 {
			e.seed = seed
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		loc:           time.UTC,
		intervalWidth: DefaultIntervalWidth,
		samples:       DefaultSamples,
		seed:          DefaultSeed,
		log:           slog.Default().With("component", "forecast"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Forecast fits series and projects it over horizon. Only points strictly
// after the last historical timestamp are returned; no partial result is
// returned on error.
func (e *Engine) Forecast(ctx context.Context, series *domain.Series, horizon domain.Period) (*domain.ForecastResult, error) {
	h, err := lookupHorizon(horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, horizon)
	}
	obs := e.observations(series)
	if len(obs) < 2 {
		return nil, ErrInsufficientHistory
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	m, err := fit(obs)
	if err != nil {
		return nil, err
	}

	last := obs[len(obs)-1].t
	grid := h.grid(last)
	ts := make([]float64, len(grid))
	yhat := make([]float64, len(grid))
	for i, t := range grid {
		ts[i] = m.scaledTime(t)
		yhat[i] = m.predict(t)
	}
	lower, upper, err := m.interval(ctx, ts, yhat, e.intervalWidth, e.samples, e.seed)
	if err != nil {
		return nil, err
	}

	points := make([]domain.ForecastPoint, 0, len(grid))
	for i, t := range grid {
		if !t.After(last) {
			continue
		}
		p := domain.ForecastPoint{
			Timestamp: e.fromCivil(t),
			Close:     yhat[i] * m.scale,
			High:      upper[i] * m.scale,
			Low:       lower[i] * m.scale,
		}
		p.Open = p.Close
		if n := len(points); n > 0 {
			p.Open = points[n-1].Close
		}
		points = append(points, p)
	}

	e.log.Debug("forecast computed",
		"symbol", series.Symbol,
		"horizon", horizon,
		"history", len(obs),
		"points", len(points),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return &domain.ForecastResult{Points: points}, nil
}

// ForecastWithSentiment runs Forecast and, when sentiment is non-nil, scales
// every point by AdjustmentFactor(sentiment.Score).
func (e *Engine) ForecastWithSentiment(ctx context.Context, series *domain.Series, horizon domain.Period, sentiment *domain.SentimentResult) (*domain.ForecastResult, error) {
	base, err := e.Forecast(ctx, series, horizon)
	if err != nil {
		return nil, err
	}
	return Adjust(base, sentiment), nil
}

// observations converts bars to civil times in the engine location, sorted
// with duplicate timestamps collapsed to the last value.
func (e *Engine) observations(series *domain.Series) []observation {
	if series == nil {
		return nil
	}
	obs := make([]observation, len(series.Bars))
	for i, b := range series.Bars {
		obs[i] = observation{t: e.toCivil(b.Timestamp), y: b.Close}
	}
	slices.SortStableFunc(obs, func(a, b observation) int { return a.t.Compare(b.t) })

	out := obs[:0]
	for _, o := range obs {
		if n := len(out); n > 0 && out[n-1].t.Equal(o.t) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	return out
}

// toCivil reads t's wall clock in the engine location as a UTC time.
func (e *Engine) toCivil(t time.Time) time.Time {
	l := t.In(e.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

func (e *Engine) fromCivil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), e.loc)
}
