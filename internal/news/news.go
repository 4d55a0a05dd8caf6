// Package news fetches recent articles about a company for sentiment
// scoring. Sources are tried in order until one returns articles: the
// newsdata.io API, the Alpaca news API and Google News RSS.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Article is a single news article from any source.
type Article struct {
	Time        time.Time
	Source      string
	Title       string
	Description string
}

// Text returns the text scored for sentiment: the title and description
// joined by a space.
func (a Article) Text() string {
	return strings.TrimSpace(a.Title + " " + a.Description)
}

// Provider returns recent articles for a symbol. Failures yield an empty
// slice, never an error.
type Provider interface {
	Articles(ctx context.Context, symbol, companyName string) []Article
}

// Source is one upstream news feed.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol, companyName string) ([]Article, error)
}

// APIError is returned when an upstream news API responds with a non-success
// status.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("news api error %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Compile-time interface check.
var _ Provider = (*Multi)(nil)

// Multi tries each source in order and returns the first non-empty batch of
// usable articles. Articles without both a title and a description are
// dropped.
type Multi struct {
	sources []Source
	log     *slog.Logger
}

// NewMulti creates a Provider over the given sources.
func NewMulti(sources ...Source) *Multi {
	return &Multi{
		sources: sources,
		log:     slog.Default().With("component", "news"),
	}
}

// Articles implements Provider.
func (m *Multi) Articles(ctx context.Context, symbol, companyName string) []Article {
	for _, src := range m.sources {
		if ctx.Err() != nil {
			return nil
		}
		raw, err := src.Fetch(ctx, symbol, companyName)
		if err != nil {
			m.log.Warn("news source failed", "source", src.Name(), "symbol", symbol, "error", err)
			continue
		}
		articles := usable(raw)
		if skipped := len(raw) - len(articles); skipped > 0 {
			m.log.Debug("skipped articles without title or description", "source", src.Name(), "skipped", skipped)
		}
		if len(articles) > 0 {
			m.log.Info("fetched news", "source", src.Name(), "symbol", symbol, "company", companyName, "articles", len(articles))
			return articles
		}
	}
	m.log.Info("no news found", "symbol", symbol, "company", companyName)
	return nil
}

func usable(raw []Article) []Article {
	out := make([]Article, 0, len(raw))
	for _, a := range raw {
		a.Title = strings.TrimSpace(a.Title)
		a.Description = strings.TrimSpace(a.Description)
		if a.Title == "" || a.Description == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
