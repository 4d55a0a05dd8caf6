package stockcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8000"
	c := NewClient(baseURL)
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}
	if c.http == nil {
		t.Fatal("expected non-nil http client")
	}
}

func TestGetStockData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/get_stock_data" {
			t.Errorf("request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("include_prediction") != "true" || r.URL.Query().Get("include_sentiment") != "false" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["symbol"] != "AAPL" || body["duration"] != "3m" || body["chart_style"] != "line" {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stock_data":{"symbol":"AAPL","company_name":"Apple Inc.","bars":[{"timestamp":"2024-06-28T00:00:00Z","close":1.5,"volume":null}]},
			"charts":{"main":{"data":[]},"prediction":null},
			"forecast":[{"timestamp":"2024-06-29T00:00:00Z","close":1.6}],"sentiment_result":null}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).GetStockData(context.Background(), StockRequest{
		Symbol: "AAPL", Duration: "3m", ChartStyle: "line", IncludePrediction: true,
	})
	if err != nil {
		t.Fatalf("GetStockData: %v", err)
	}
	if got.StockData.CompanyName != "Apple Inc." || len(got.StockData.Bars) != 1 || got.StockData.Bars[0].Volume != nil {
		t.Errorf("stock_data = %+v", got.StockData)
	}
	if len(got.Forecast) != 1 || got.Forecast[0].Close != 1.6 {
		t.Errorf("forecast = %+v", got.Forecast)
	}
	if got.SentimentResult != nil {
		t.Error("sentiment should be nil")
	}
	if string(got.Charts.Main) == "" {
		t.Error("main chart missing")
	}
}

func TestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid symbol: ZZZZ"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetStockData(context.Background(), StockRequest{Symbol: "ZZZZ", Duration: "1d"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "invalid symbol: ZZZZ" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if _, err := NewClient(srv.URL).Symbols(context.Background()); err == nil {
		t.Error("Symbols should fail on 400")
	}
}

func TestSymbolsAndSentiment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/symbols":
			w.Write([]byte(`{"symbols":["AAPL","MSFT"]}`))
		case "/api/sentiment/AAPL":
			w.Write([]byte(`{"symbol":"AAPL","sentiment":{"score":0.3,"label":"Positive"},"pending":false}`))
		case "/api/sentiment/MSFT":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"symbol":"MSFT","sentiment":null,"pending":true}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)

	syms, err := c.Symbols(context.Background())
	if err != nil || len(syms) != 2 {
		t.Errorf("Symbols = %v, %v", syms, err)
	}

	s, err := c.Sentiment(context.Background(), "AAPL")
	if err != nil || s.Sentiment == nil || s.Sentiment.Label != "Positive" {
		t.Errorf("Sentiment(AAPL) = %+v, %v", s, err)
	}
	p, err := c.Sentiment(context.Background(), "MSFT")
	if err != nil || p.Sentiment != nil || !p.Pending {
		t.Errorf("Sentiment(MSFT) = %+v, %v", p, err)
	}
	if _, err := c.Sentiment(context.Background(), "BOOM"); err == nil {
		t.Error("Sentiment should fail on 500")
	}
}
