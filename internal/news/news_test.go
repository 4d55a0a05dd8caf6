package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

func TestNewsDataFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/news" {
			t.Errorf("path = %q, want /news", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"apikey": q.Get("apikey"), "q": q.Get("q"), "language": q.Get("language"),
			"category": q.Get("category"), "size": q.Get("size"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","totalResults":3,"results":[
			{"title":"Apple beats estimates","description":"<p>Strong iPhone sales</p>","source_id":"reuters","pubDate":"2024-05-02 21:05:00"},
			{"title":"Apple faces probe","description":null,"source_id":"ft","pubDate":"2024-05-02 10:00:00"},
			{"title":"","description":"orphan","source_id":"x","pubDate":""}
		]}`))
	}))
	defer srv.Close()

	nd := NewNewsData("secret", srv.URL, 10, 0, 5*time.Second)
	articles, err := nd.Fetch(context.Background(), "AAPL", "Apple Inc.")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := map[string]string{"apikey": "secret", "q": `"Apple Inc."`, "language": "en", "category": "business", "size": "10"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}

	if len(articles) != 3 {
		t.Fatalf("Fetch returned %d articles, want 3 (filtering happens in Multi)", len(articles))
	}
	a := articles[0]
	if a.Title != "Apple beats estimates" || a.Description != "Strong iPhone sales" {
		t.Errorf("first article = %+v", a)
	}
	if a.Source != "newsdata:reuters" {
		t.Errorf("Source = %q", a.Source)
	}
	if !a.Time.Equal(time.Date(2024, 5, 2, 21, 5, 0, 0, time.UTC)) {
		t.Errorf("Time = %v", a.Time)
	}
}

func TestNewsDataErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("apikey") {
		case "bad":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"status":"error","results":{"message":"API key invalid","code":"Unauthorized"}}`))
		default:
			w.Write([]byte(`{"status":"error","results":{"message":"quota exceeded","code":"RateLimitExceeded"}}`))
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	_, err := NewNewsData("bad", srv.URL, 10, 0, time.Second).Fetch(ctx, "AAPL", "Apple Inc.")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Endpoint != "/news" {
		t.Errorf("APIError = %+v", apiErr)
	}

	_, err = NewNewsData("ok", srv.URL, 10, 0, time.Second).Fetch(ctx, "AAPL", "Apple Inc.")
	if !errors.As(err, &apiErr) || apiErr.Message != "quota exceeded" {
		t.Errorf("Fetch error = %v, want APIError with quota message", err)
	}

	if _, err := NewNewsData("", srv.URL, 10, 0, time.Second).Fetch(ctx, "AAPL", "Apple Inc."); err == nil {
		t.Error("Fetch without api key should fail")
	}
}

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<item><title>Apple shares rise on AI push - Reuters</title><pubDate>Thu, 02 May 2024 21:05:00 GMT</pubDate>
<description>&lt;a href="https://example.com"&gt;Apple shares rise on AI push&lt;/a&gt;&amp;nbsp;&lt;font&gt;Reuters&lt;/font&gt;</description><source>Reuters</source></item>
<item><title>Apple supplier warns - Bloomberg</title><pubDate>Thu, 02 May 2024 10:00:00 +0000</pubDate>
<description></description><source>Bloomberg</source></item>
<item><title>Third - CNBC</title><pubDate>Wed, 01 May 2024 10:00:00 +0000</pubDate><description>x</description></item>
</channel></rss>`

func TestGoogleNewsFetch(t *testing.T) {
	var gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rss/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQ = r.URL.Query().Get("q")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	g := NewGoogleNews(srv.URL, 2, time.Second)
	articles, err := g.Fetch(context.Background(), "AAPL", "Apple Inc.")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQ != `"Apple Inc."` {
		t.Errorf("q = %q", gotQ)
	}
	if len(articles) != 2 {
		t.Fatalf("Fetch returned %d articles, want 2 (limit)", len(articles))
	}
	if articles[0].Title != "Apple shares rise on AI push" {
		t.Errorf("Title = %q, want outlet suffix trimmed", articles[0].Title)
	}
	if !strings.Contains(articles[0].Description, "Reuters") {
		t.Errorf("Description = %q", articles[0].Description)
	}
	if articles[1].Description != "Bloomberg" {
		t.Errorf("empty description should fall back to source, got %q", articles[1].Description)
	}
	if articles[0].Time.IsZero() || articles[1].Time.IsZero() {
		t.Error("pubDate not parsed")
	}
}

type fakeNewsClient struct {
	req   marketdata.GetNewsRequest
	items []marketdata.News
}

func (f *fakeNewsClient) GetNews(req marketdata.GetNewsRequest) ([]marketdata.News, error) {
	f.req = req
	return f.items, nil
}

func TestAlpacaNewsFetch(t *testing.T) {
	now := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	fc := &fakeNewsClient{items: []marketdata.News{
		{Headline: "Apple buyback", Summary: "Record $110B buyback", CreatedAt: now.Add(-time.Hour)},
		{Headline: "Tech roundup", Content: "<p>Markets mixed.</p><p>AAPL gained 6%.</p>", CreatedAt: now.Add(-2 * time.Hour)},
	}}
	a := newAlpacaNews(fc, 10)
	a.now = func() time.Time { return now }

	articles, err := a.Fetch(context.Background(), "AAPL", "Apple Inc.")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(fc.req.Symbols) != 1 || fc.req.Symbols[0] != "AAPL" || fc.req.TotalLimit != 10 {
		t.Errorf("request = %+v", fc.req)
	}
	if !fc.req.Start.Equal(now.Add(-7 * 24 * time.Hour)) {
		t.Errorf("Start = %v", fc.req.Start)
	}
	if len(articles) != 2 {
		t.Fatalf("got %d articles", len(articles))
	}
	if articles[0].Description != "Record $110B buyback" {
		t.Errorf("summary not used: %q", articles[0].Description)
	}
	if articles[1].Description != "AAPL gained 6%." {
		t.Errorf("content extraction = %q", articles[1].Description)
	}
}

type stubSource struct {
	name     string
	articles []Article
	err      error
	calls    int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context, string, string) ([]Article, error) {
	s.calls++
	return s.articles, s.err
}

func TestMultiFallback(t *testing.T) {
	failing := &stubSource{name: "a", err: errors.New("boom")}
	unusable := &stubSource{name: "b", articles: []Article{{Title: "no description"}}}
	good := &stubSource{name: "c", articles: []Article{{Title: " Up ", Description: " big gains "}, {Description: "no title"}}}
	never := &stubSource{name: "d", articles: []Article{{Title: "t", Description: "d"}}}

	m := NewMulti(failing, unusable, good, never)
	got := m.Articles(context.Background(), "AAPL", "Apple Inc.")
	if len(got) != 1 {
		t.Fatalf("Articles returned %d, want 1", len(got))
	}
	if got[0].Title != "Up" || got[0].Description != "big gains" {
		t.Errorf("article not trimmed: %+v", got[0])
	}
	if got[0].Text() != "Up big gains" {
		t.Errorf("Text() = %q", got[0].Text())
	}
	if never.calls != 0 {
		t.Errorf("source after first success called %d times", never.calls)
	}

	if got := NewMulti(failing).Articles(context.Background(), "AAPL", ""); len(got) != 0 {
		t.Errorf("all-failing Multi returned %v, want empty", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := good.calls
	if got := NewMulti(good).Articles(ctx, "AAPL", ""); len(got) != 0 || good.calls != before {
		t.Errorf("cancelled context should skip all sources")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct{ in, want string }{
		{"<b>Hello</b>   world", "Hello world"},
		{"Q&amp;A &lt;ok&gt;", "Q&A <ok>"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := ExtractSymbolContent("<p>nothing here</p>", "AAPL"); got != "nothing here" {
		t.Errorf("ExtractSymbolContent fallback = %q", got)
	}
	if got := truncate("héllo", 2); got != "hé" {
		t.Errorf("truncate = %q", got)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 429, Endpoint: "/news", Message: "slow down"}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("Error() = %q", err.Error())
	}
}
