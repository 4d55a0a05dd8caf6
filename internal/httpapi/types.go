// Package httpapi serves the stockcast JSON API and the static web client.
package httpapi

import (
	"time"

	"stockcast/internal/chart"
	"stockcast/internal/domain"
	"stockcast/internal/store"
)

// StockDataRequest is the body of POST /api/get_stock_data.
type StockDataRequest struct {
	Symbol     string `json:"symbol" validate:"required,max=12"`
	Duration   string `json:"duration" validate:"required,oneof=1d 1w 1m 3m 6m 1y"`
	ChartStyle string `json:"chart_style" validate:"omitempty,oneof=candlestick line"`
}

// BarJSON is one OHLCV bar. Volume is null when unknown.
type BarJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *int64    `json:"volume"`
}

// StockDataJSON is the current series with its quote metadata.
type StockDataJSON struct {
	Symbol           string    `json:"symbol"`
	Duration         string    `json:"duration"`
	CompanyName      string    `json:"company_name"`
	CurrentPrice     float64   `json:"current_price"`
	Change           *float64  `json:"change"`
	ChangePercent    *float64  `json:"change_percent"`
	PreviousClose    *float64  `json:"previous_close"`
	Open             *float64  `json:"open"`
	High             *float64  `json:"high"`
	Low              *float64  `json:"low"`
	Volume           *int64    `json:"volume"`
	MarketCap        *float64  `json:"market_cap"`
	PERatio          *float64  `json:"pe_ratio"`
	DividendYield    *float64  `json:"dividend_yield"`
	FiftyTwoWeekHigh *float64  `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64  `json:"fifty_two_week_low"`
	Bars             []BarJSON `json:"bars"`
}

// ChartsJSON carries the Plotly figures. Prediction is null when no
// forecast was produced.
type ChartsJSON struct {
	Main       *chart.Figure `json:"main"`
	Prediction *chart.Figure `json:"prediction"`
}

// StockDataResponse is the response of POST /api/get_stock_data.
type StockDataResponse struct {
	StockData       StockDataJSON           `json:"stock_data"`
	Charts          ChartsJSON              `json:"charts"`
	Forecast        []BarJSON               `json:"forecast"`
	SentimentResult *domain.SentimentResult `json:"sentiment_result"`
}

// SymbolsResponse is the response of GET /api/symbols.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// SentimentResponse is the response of GET /api/sentiment/{symbol}.
type SentimentResponse struct {
	Symbol    string                  `json:"symbol"`
	Sentiment *domain.SentimentResult `json:"sentiment"`
	Pending   bool                    `json:"pending"`
}

// SentimentHistoryResponse is the response of
// GET /api/sentiment/{symbol}/history.
type SentimentHistoryResponse struct {
	Symbol  string                  `json:"symbol"`
	Records []store.SentimentRecord `json:"records"`
}

// ModelStatusJSON reports the sentiment model state.
type ModelStatusJSON struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// HealthResponse is the response of GET /healthz.
type HealthResponse struct {
	Status         string          `json:"status"`
	SentimentModel ModelStatusJSON `json:"sentiment_model"`
	Symbols        int             `json:"symbols"`
}

func convertStockData(d *domain.StockData, period domain.Period) StockDataJSON {
	q := d.Quote
	return StockDataJSON{
		Symbol:           d.Symbol,
		Duration:         string(period),
		CompanyName:      q.CompanyName,
		CurrentPrice:     q.CurrentPrice,
		Change:           q.Change,
		ChangePercent:    q.ChangePercent,
		PreviousClose:    q.PreviousClose,
		Open:             q.Open,
		High:             q.High,
		Low:              q.Low,
		Volume:           q.Volume,
		MarketCap:        q.MarketCap,
		PERatio:          q.PERatio,
		DividendYield:    q.DividendYield,
		FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
		Bars:             convertBars(d.Series.Bars),
	}
}

func convertBars(bars []domain.Bar) []BarJSON {
	out := make([]BarJSON, len(bars))
	for i, b := range bars {
		out[i] = BarJSON{Timestamp: b.Timestamp, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	return out
}

func convertForecast(fc *domain.ForecastResult) []BarJSON {
	if fc == nil {
		return nil
	}
	out := make([]BarJSON, len(fc.Points))
	for i, p := range fc.Points {
		out[i] = BarJSON{Timestamp: p.Timestamp, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume}
	}
	return out
}
