package symbols

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// DefaultWikipediaURL lists the S&P 500 constituents.
const DefaultWikipediaURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Wikipedia scrapes the first column of the constituents table.
type Wikipedia struct {
	client *resty.Client
	url    string
}

// Compile-time interface check.
var _ Fetcher = (*Wikipedia)(nil)

// NewWikipedia creates a Fetcher for the page at url.
func NewWikipedia(url string, timeout time.Duration) *Wikipedia {
	if url == "" {
		url = DefaultWikipediaURL
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "stockcast/1.0 (symbol list refresh)")
	return &Wikipedia{client: client, url: url}
}

// Fetch implements Fetcher.
func (w *Wikipedia) Fetch(ctx context.Context) ([]string, error) {
	resp, err := w.client.R().SetContext(ctx).Get(w.url)
	if err != nil {
		return nil, fmt.Errorf("fetching symbol list: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching symbol list: status %d", resp.StatusCode())
	}
	return parseConstituents(resp.Body())
}

// parseConstituents reads ticker symbols from the table with id
// "constituents", falling back to the first wikitable on the page.
func parseConstituents(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing symbol list: %w", err)
	}
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("parsing symbol list: constituents table not found")
	}

	var out []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}
		if sym := Normalize(strings.TrimSpace(cell.Text())); sym != "" {
			out = append(out, sym)
		}
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("parsing symbol list: no symbols in table")
	}
	return out, nil
}
