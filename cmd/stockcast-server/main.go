package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockcast/internal/config"
	"stockcast/internal/forecast"
	"stockcast/internal/httpapi"
	"stockcast/internal/market"
	"stockcast/internal/news"
	"stockcast/internal/sentiment"
	"stockcast/internal/stockview"
	"stockcast/internal/store"
	"stockcast/internal/symbols"
	"stockcast/internal/util"
)

func main() {
	cfgPath := "config/stockcast.yaml"
	if p := os.Getenv("STOCKCAST_CONFIG"); p != "" {
		cfgPath = p
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Market data.
	var provider market.Provider
	switch cfg.Market.Source {
	case "alpaca":
		provider = market.NewAlpaca(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Alpaca.DataURL, cfg.Alpaca.Feed, cfg.Market.Retries)
	default:
		provider = market.NewYahoo(cfg.Market.Retries)
	}
	if cfg.Storage.DataDir != "" {
		provider = market.NewArchived(provider, store.NewParquetStore(cfg.Storage.DataDir))
		logger.Info("bar archive enabled", "dir", cfg.Storage.DataDir)
	}
	provider = market.NewCached(provider, cfg.Market.CurrentTTL, cfg.Market.YearTTL, cfg.Market.NegativeTTL)

	// Sentiment.
	headlines := news.NewMulti(newsSources(cfg, logger)...)

	loadCtx, loadCancel := context.WithTimeout(ctx, 2*time.Minute)
	model := sentiment.LoadModel(loadCtx, cfg.Sentiment.Scorer, scorerLoader(cfg))
	loadCancel()

	schedOpts := []sentiment.SchedulerOption{
		sentiment.WithMaxConcurrent(cfg.Sentiment.MaxConcurrent),
		sentiment.WithComputeTimeout(cfg.Sentiment.ComputeTimeout),
	}
	var history store.SentimentHistory
	if cfg.Storage.SQLitePath != "" {
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening sentiment history: %v", err)
		}
		defer db.Close()
		history = db
		schedOpts = append(schedOpts, sentiment.WithHistory(db))
		logger.Info("sentiment history enabled", "path", cfg.Storage.SQLitePath)
	}
	sched := sentiment.NewScheduler(
		sentiment.NewCache(cfg.Sentiment.CacheTTL, cfg.Sentiment.MaxEntries),
		headlines,
		sentiment.NewAnalyzer(model),
		schedOpts...,
	)
	defer sched.Close()

	// Forecasting.
	loc, err := time.LoadLocation(cfg.Forecast.Location)
	if err != nil {
		log.Fatalf("loading forecast location: %v", err)
	}
	engine := forecast.NewEngine(
		forecast.WithLocation(loc),
		forecast.WithIntervalWidth(cfg.Forecast.IntervalWidth),
		forecast.WithSamples(cfg.Forecast.Samples),
		forecast.WithSeed(cfg.Forecast.Seed),
	)

	// Symbols.
	list := symbols.NewList(symbols.NewWikipedia(cfg.Symbols.SourceURL, 30*time.Second), symbols.DefaultTTL)
	if path := referenceCSV(cfg.Symbols.ReferenceCSV); path != "" {
		seed, err := symbols.LoadCSV(path)
		if err != nil {
			logger.Warn("reading reference symbols", "path", path, "error", err)
		}
		list.Seed(seed)
		logger.Info("seeded symbol list", "path", path, "symbols", len(seed))
	}
	go func() {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, time.Minute)
		defer refreshCancel()
		if err := list.Refresh(refreshCtx); err != nil {
			logger.Warn("initial symbol refresh failed, validation fails open", "error", err)
		}
	}()
	refresher := symbols.NewRefresher(list, time.Minute)
	if err := refresher.Start(cfg.Symbols.RefreshCron); err != nil {
		log.Fatalf("scheduling symbol refresh: %v", err)
	}
	defer refresher.Stop()

	// HTTP.
	svc := stockview.NewService(provider, sched, engine, list, cfg.Sentiment.WaitTimeout)
	api := httpapi.NewServer(httpapi.Deps{
		Views:     svc,
		Symbols:   list,
		Sentiment: sched,
		Model:     model,
		History:   history,
		StaticDir: cfg.Server.StaticDir,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("stockcast server listening",
			"addr", httpServer.Addr,
			"market", cfg.Market.Source,
			"scorer", model.Name(),
			"scorer_ready", model.Ready(),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down stockcast server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newsSources builds the configured sources in order, skipping those
// without credentials.
func newsSources(cfg *config.Config, logger *slog.Logger) []news.Source {
	var out []news.Source
	for _, name := range cfg.News.Sources {
		switch name {
		case "newsdata":
			if cfg.News.NewsDataAPIKey == "" {
				logger.Warn("newsdata source skipped, NEWSDATA_API_KEY not set")
				continue
			}
			out = append(out, news.NewNewsData(cfg.News.NewsDataAPIKey, cfg.News.NewsDataURL,
				cfg.News.PageSize, cfg.News.RatePerSecond, cfg.News.Timeout))
		case "alpaca":
			if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
				logger.Warn("alpaca news source skipped, credentials not set")
				continue
			}
			opts := marketdata.ClientOpts{APIKey: cfg.Alpaca.APIKey, APISecret: cfg.Alpaca.APISecret}
			if cfg.Alpaca.DataURL != "" {
				opts.BaseURL = cfg.Alpaca.DataURL
			}
			out = append(out, news.NewAlpacaNews(marketdata.NewClient(opts), cfg.News.PageSize))
		case "google":
			out = append(out, news.NewGoogleNews("", cfg.News.PageSize, cfg.News.Timeout))
		}
	}
	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.Name()
	}
	logger.Info("news sources configured", "sources", names)
	return out
}

func scorerLoader(cfg *config.Config) func(context.Context) (sentiment.Scorer, error) {
	switch cfg.Sentiment.Scorer {
	case "claude":
		return sentiment.LoadClaude(cfg.Sentiment.ClaudeAPIKey, cfg.Sentiment.ClaudeModel)
	case "lexicon":
		return sentiment.LoadLexicon()
	default:
		return sentiment.LoadHuggingFace(cfg.Sentiment.HFModelURL, cfg.Sentiment.HFToken, cfg.Sentiment.ComputeTimeout)
	}
}

// referenceCSV resolves a configured path; a directory selects its newest
// us_stock CSV.
func referenceCSV(path string) string {
	if path == "" {
		return ""
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return symbols.FindLatestCSV(path, "us_stock")
	}
	return path
}
