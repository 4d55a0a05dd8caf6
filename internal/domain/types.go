// Package domain defines the core types shared across stockcast: price bars
// and series, quote metadata, sentiment results and forecasts.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Periods
// ---------------------------------------------------------------------------

// Period is a requested chart duration. It determines the look-back window of
// the current series and its bar spacing.
type Period string

const (
	Period1D Period = "1d"
	Period1W Period = "1w"
	Period1M Period = "1m"
	Period3M Period = "3m"
	Period6M Period = "6m"
	Period1Y Period = "1y"
)

// Periods lists every supported period in ascending length.
var Periods = []Period{Period1D, Period1W, Period1M, Period3M, Period6M, Period1Y}

// ParsePeriod validates s as a Period.
func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported period %q", s)
}

// Interval returns the expected spacing between bars of a series fetched for p.
func (p Period) Interval() time.Duration {
	switch p {
	case Period1D:
		return 5 * time.Minute
	case Period1W:
		return 15 * time.Minute
	case Period1M:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}

// Lookback returns how far back the current series for p reaches.
func (p Period) Lookback() time.Duration {
	day := 24 * time.Hour
	switch p {
	case Period1D:
		return day
	case Period1W:
		return 7 * day
	case Period1M:
		return 30 * day
	case Period3M:
		return 90 * day
	case Period6M:
		return 180 * day
	default:
		return 365 * day
	}
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Bar is one OHLCV observation. Volume is nil when unknown.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *int64
}

// Series is an ordered run of bars for one symbol. Timestamps are strictly
// increasing.
type Series struct {
	Symbol string
	Period Period
	Bars   []Bar
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar, or false for an empty series.
func (s *Series) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Quote is reference metadata supplied alongside the current series.
// Optional values are nil when the upstream source does not report them.
type Quote struct {
	CompanyName      string
	CurrentPrice     float64
	Change           *float64
	ChangePercent    *float64
	PreviousClose    *float64
	Open             *float64
	High             *float64
	Low              *float64
	Volume           *int64
	MarketCap        *float64
	PERatio          *float64
	DividendYield    *float64
	FiftyTwoWeekHigh *float64
	FiftyTwoWeekLow  *float64
}

// StockData is the current-period view of a symbol: its series plus quote
// metadata.
type StockData struct {
	Symbol string
	Quote  Quote
	Series Series
}

// ---------------------------------------------------------------------------
// Sentiment
// ---------------------------------------------------------------------------

// SentimentLabel classifies a sentiment score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNeutral  SentimentLabel = "Neutral"
	SentimentNegative SentimentLabel = "Negative"
)

// sentimentThreshold separates Neutral from Positive/Negative.
const sentimentThreshold = 0.1

// LabelForScore thresholds score at ±0.1.
func LabelForScore(score float64) SentimentLabel {
	switch {
	case score > sentimentThreshold:
		return SentimentPositive
	case score < -sentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// SentimentDetails holds class probabilities that sum to about 1.
type SentimentDetails struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Max returns the largest of the three probabilities.
func (d SentimentDetails) Max() float64 {
	return max(d.Positive, d.Negative, d.Neutral)
}

// SentimentResult is the aggregated sentiment of a batch of articles.
type SentimentResult struct {
	Score      float64          `json:"score"`
	Label      SentimentLabel   `json:"label"`
	Confidence float64          `json:"confidence"`
	Details    SentimentDetails `json:"details"`
}

// NeutralSentiment is the baseline returned for an empty batch.
func NeutralSentiment() SentimentResult {
	return SentimentResult{
		Score:      0,
		Label:      SentimentNeutral,
		Confidence: 0,
		Details:    SentimentDetails{Neutral: 1},
	}
}

// ---------------------------------------------------------------------------
// Forecasts
// ---------------------------------------------------------------------------

// ForecastPoint is one projected bar. Close is the prediction, High and Low
// the interval bounds, and Open the previous point's prediction. Volume is
// always nil.
type ForecastPoint struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *int64
}

// ForecastResult is an ordered projection, optionally carrying the sentiment
// it was adjusted by.
type ForecastResult struct {
	Points    []ForecastPoint
	Sentiment *SentimentResult
}
