package news

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Compile-time interface check.
var _ Source = (*AlpacaNews)(nil)

type newsClient interface {
	GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error)
}

// AlpacaNews fetches recent symbol news from the Alpaca market-data API.
type AlpacaNews struct {
	client   newsClient
	limit    int
	lookback time.Duration
	now      func() time.Time
}

// NewAlpacaNews creates an Alpaca news source using mdc.
func NewAlpacaNews(mdc *marketdata.Client, limit int) *AlpacaNews {
	return newAlpacaNews(mdc, limit)
}

func newAlpacaNews(c newsClient, limit int) *AlpacaNews {
	return &AlpacaNews{client: c, limit: limit, lookback: 7 * 24 * time.Hour, now: time.Now}
}

// Name returns the source identifier.
func (a *AlpacaNews) Name() string { return "alpaca" }

// Fetch implements Source. Articles are newest first.
func (a *AlpacaNews) Fetch(ctx context.Context, symbol, _ string) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := a.now()
	items, err := a.client.GetNews(marketdata.GetNewsRequest{
		Symbols:            []string{symbol},
		Start:              end.Add(-a.lookback),
		End:                end,
		TotalLimit:         a.limit,
		IncludeContent:     true,
		ExcludeContentless: true,
		Sort:               marketdata.SortDesc,
	})
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(items))
	for _, it := range items {
		desc := it.Summary
		if desc == "" && it.Content != "" {
			desc = truncate(ExtractSymbolContent(it.Content, symbol), 1000)
		}
		articles = append(articles, Article{
			Time:        it.CreatedAt,
			Source:      "alpaca",
			Title:       it.Headline,
			Description: desc,
		})
	}
	return articles, nil
}
