package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultGoogleNewsURL is the base URL for Google News RSS search.
const DefaultGoogleNewsURL = "https://news.google.com"

// Compile-time interface check.
var _ Source = (*GoogleNews)(nil)

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	PubDate string `xml:"pubDate"`
	Desc    string `xml:"description"`
	Source  string `xml:"source"`
}

// GoogleNews searches Google News RSS for the company name.
type GoogleNews struct {
	client *resty.Client
	limit  int
}

// NewGoogleNews creates a Google News RSS source.
func NewGoogleNews(baseURL string, limit int, timeout time.Duration) *GoogleNews {
	if baseURL == "" {
		baseURL = DefaultGoogleNewsURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "Mozilla/5.0")
	return &GoogleNews{client: client, limit: limit}
}

// Name returns the source identifier.
func (g *GoogleNews) Name() string { return "google" }

// Fetch implements Source.
func (g *GoogleNews) Fetch(ctx context.Context, symbol, companyName string) ([]Article, error) {
	q := symbol + " stock"
	if companyName != "" {
		q = `"` + companyName + `"`
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    q,
			"hl":   "en-US",
			"gl":   "US",
			"ceid": "US:en",
		}).
		Get("/rss/search")
	if err != nil {
		return nil, fmt.Errorf("fetching google news for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Endpoint: "/rss/search", Message: truncate(resp.String(), 200)}
	}

	var rss rssResponse
	if err := xml.Unmarshal(resp.Body(), &rss); err != nil {
		return nil, fmt.Errorf("decoding google news rss: %w", err)
	}

	var articles []Article
	for _, item := range rss.Channel.Items {
		if g.limit > 0 && len(articles) >= g.limit {
			break
		}
		t, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			t, _ = time.Parse(time.RFC1123, item.PubDate)
		}
		headline := item.Title
		if idx := strings.LastIndex(headline, " - "); idx > 0 {
			headline = headline[:idx]
		}
		desc := StripHTML(item.Desc)
		if desc == "" {
			desc = item.Source
		}
		articles = append(articles, Article{
			Time:        t,
			Source:      "google",
			Title:       headline,
			Description: desc,
		})
	}
	return articles, nil
}
