package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}
	if bar.Volume != nil {
		t.Error("expected nil Volume for zero-value Bar")
	}

	point := ForecastPoint{}
	if point.Volume != nil {
		t.Error("expected nil Volume for zero-value ForecastPoint")
	}

	var s *Series
	if s.Len() != 0 {
		t.Errorf("nil Series Len() = %d, want 0", s.Len())
	}
	if _, ok := s.Last(); ok {
		t.Error("nil Series Last() reported a bar")
	}

	now := time.Now()
	s = &Series{Symbol: "AAPL", Period: Period3M, Bars: []Bar{{Timestamp: now.Add(-time.Hour)}, {Timestamp: now, Close: 10}}}
	last, ok := s.Last()
	if !ok || last.Close != 10 {
		t.Errorf("Last() = %+v, %v; want close 10", last, ok)
	}
}

func TestParsePeriod(t *testing.T) {
	for _, p := range Periods {
		got, err := ParsePeriod(string(p))
		if err != nil {
			t.Errorf("ParsePeriod(%q) error: %v", p, err)
		}
		if got != p {
			t.Errorf("ParsePeriod(%q) = %q", p, got)
		}
	}
	for _, bad := range []string{"", "1mo", "2y", "1D"} {
		if _, err := ParsePeriod(bad); err == nil {
			t.Errorf("ParsePeriod(%q) should fail", bad)
		}
	}
}

func TestPeriodIntervalAndLookback(t *testing.T) {
	tests := []struct {
		period   Period
		interval time.Duration
		lookback time.Duration
	}{
		{Period1D, 5 * time.Minute, 24 * time.Hour},
		{Period1W, 15 * time.Minute, 7 * 24 * time.Hour},
		{Period1M, time.Hour, 30 * 24 * time.Hour},
		{Period3M, 24 * time.Hour, 90 * 24 * time.Hour},
		{Period6M, 24 * time.Hour, 180 * 24 * time.Hour},
		{Period1Y, 24 * time.Hour, 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := tt.period.Interval(); got != tt.interval {
			t.Errorf("%s.Interval() = %v, want %v", tt.period, got, tt.interval)
		}
		if got := tt.period.Lookback(); got != tt.lookback {
			t.Errorf("%s.Lookback() = %v, want %v", tt.period, got, tt.lookback)
		}
	}
}

func TestLabelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  SentimentLabel
	}{
		{0, SentimentNeutral},
		{0.1, SentimentNeutral},
		{-0.1, SentimentNeutral},
		{0.1001, SentimentPositive},
		{-0.1001, SentimentNegative},
		{1, SentimentPositive},
		{-1, SentimentNegative},
	}
	for _, tt := range tests {
		if got := LabelForScore(tt.score); got != tt.want {
			t.Errorf("LabelForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestNeutralSentiment(t *testing.T) {
	n := NeutralSentiment()
	if n.Score != 0 || n.Confidence != 0 || n.Label != SentimentNeutral {
		t.Errorf("NeutralSentiment() = %+v", n)
	}
	if n.Details != (SentimentDetails{Positive: 0, Negative: 0, Neutral: 1}) {
		t.Errorf("NeutralSentiment().Details = %+v", n.Details)
	}
	if n.Details.Max() != 1 {
		t.Errorf("Details.Max() = %v, want 1", n.Details.Max())
	}
}
