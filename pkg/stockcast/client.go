// Package stockcast is a Go client for the stockcast-server HTTP API.
package stockcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a stockcast-server instance.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(90 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("stockcast: status %d: %s", e.StatusCode, e.Message)
}

// Bar is an OHLCV bar or forecast point.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *int64    `json:"volume"`
}

// StockData is the current series and quote metadata.
type StockData struct {
	Symbol           string   `json:"symbol"`
	Duration         string   `json:"duration"`
	CompanyName      string   `json:"company_name"`
	CurrentPrice     float64  `json:"current_price"`
	Change           *float64 `json:"change"`
	ChangePercent    *float64 `json:"change_percent"`
	PreviousClose    *float64 `json:"previous_close"`
	MarketCap        *float64 `json:"market_cap"`
	PERatio          *float64 `json:"pe_ratio"`
	DividendYield    *float64 `json:"dividend_yield"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low"`
	Bars             []Bar    `json:"bars"`
}

// Sentiment is an aggregated sentiment result.
type Sentiment struct {
	Score      float64 `json:"score"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Details    struct {
		Positive float64 `json:"positive"`
		Negative float64 `json:"negative"`
		Neutral  float64 `json:"neutral"`
	} `json:"details"`
}

// StockView is the response of GetStockData. Charts are Plotly figures left
// undecoded.
type StockView struct {
	StockData StockData `json:"stock_data"`
	Charts    struct {
		Main       json.RawMessage `json:"main"`
		Prediction json.RawMessage `json:"prediction"`
	} `json:"charts"`
	Forecast        []Bar      `json:"forecast"`
	SentimentResult *Sentiment `json:"sentiment_result"`
}

// StockRequest selects what GetStockData returns.
type StockRequest struct {
	Symbol            string
	Duration          string
	ChartStyle        string
	IncludePrediction bool
	IncludeSentiment  bool
}

// SentimentStatus is the cached sentiment for a symbol. Sentiment is nil
// while none is cached; Pending reports a running computation.
type SentimentStatus struct {
	Symbol    string     `json:"symbol"`
	Sentiment *Sentiment `json:"sentiment"`
	Pending   bool       `json:"pending"`
}

type errorBody struct {
	Error string `json:"error"`
}

// GetStockData requests a stock view.
func (c *Client) GetStockData(ctx context.Context, req StockRequest) (*StockView, error) {
	var out StockView
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"include_prediction": strconv.FormatBool(req.IncludePrediction),
			"include_sentiment":  strconv.FormatBool(req.IncludeSentiment),
		}).
		SetBody(map[string]string{
			"symbol":      req.Symbol,
			"duration":    req.Duration,
			"chart_style": req.ChartStyle,
		}).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/api/get_stock_data")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Symbols returns the known symbol list.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	var out struct {
		Symbols []string `json:"symbols"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&errorBody{}).Get("/api/symbols")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return out.Symbols, nil
}

// Sentiment returns the cached sentiment for symbol. A missing result is not
// an error; check Sentiment and Pending.
func (c *Client) Sentiment(ctx context.Context, symbol string) (*SentimentStatus, error) {
	var out SentimentStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/sentiment/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("stockcast: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &out, nil
	case http.StatusNotFound:
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return nil, fmt.Errorf("stockcast: decoding sentiment: %w", err)
		}
		return &out, nil
	}
	return nil, &Error{StatusCode: resp.StatusCode(), Message: resp.String()}
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("stockcast: %w", err)
	}
	if resp.IsError() {
		msg := resp.String()
		if eb, ok := resp.Error().(*errorBody); ok && eb.Error != "" {
			msg = eb.Error
		}
		return &Error{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}
