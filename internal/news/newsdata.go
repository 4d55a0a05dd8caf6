package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultNewsDataURL is the base URL for the newsdata.io API.
const DefaultNewsDataURL = "https://newsdata.io/api/1"

// Compile-time interface check.
var _ Source = (*NewsData)(nil)

// NewsData queries the newsdata.io latest-news endpoint for exact matches of
// the company name in English business news.
type NewsData struct {
	client   *resty.Client
	apiKey   string
	pageSize int
	limiter  *rate.Limiter
}

// NewNewsData creates a newsdata.io source. ratePerSecond bounds outbound
// requests across all callers; zero means unlimited.
func NewNewsData(apiKey, baseURL string, pageSize int, ratePerSecond float64, timeout time.Duration) *NewsData {
	if baseURL == "" {
		baseURL = DefaultNewsDataURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &NewsData{
		client:   client,
		apiKey:   apiKey,
		pageSize: pageSize,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Name returns the source identifier.
func (n *NewsData) Name() string { return "newsdata" }

type newsDataResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type newsDataArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceID    string `json:"source_id"`
	PubDate     string `json:"pubDate"`
}

type newsDataError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Fetch implements Source.
func (n *NewsData) Fetch(ctx context.Context, symbol, companyName string) ([]Article, error) {
	if n.apiKey == "" {
		return nil, errors.New("newsdata api key not configured")
	}
	query := companyName
	if query == "" {
		query = symbol
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   n.apiKey,
			"q":        strconv.Quote(query),
			"language": "en",
			"category": "business",
			"size":     strconv.Itoa(n.pageSize),
		}).
		Get("/news")
	if err != nil {
		return nil, fmt.Errorf("fetching news for %s: %w", query, err)
	}
	if resp.IsError() {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Endpoint:   "/news",
			Message:    truncate(resp.String(), 200),
		}
	}

	var body newsDataResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decoding newsdata response: %w", err)
	}
	if body.Status != "success" {
		var apiErr newsDataError
		_ = json.Unmarshal(body.Results, &apiErr)
		return nil, &APIError{StatusCode: resp.StatusCode(), Endpoint: "/news", Message: apiErr.Message}
	}

	var items []newsDataArticle
	if err := json.Unmarshal(body.Results, &items); err != nil {
		return nil, fmt.Errorf("decoding newsdata results: %w", err)
	}

	articles := make([]Article, 0, len(items))
	for _, it := range items {
		t, _ := time.Parse(time.DateTime, it.PubDate)
		articles = append(articles, Article{
			Time:        t,
			Source:      "newsdata:" + it.SourceID,
			Title:       it.Title,
			Description: StripHTML(it.Description),
		})
	}
	return articles, nil
}
