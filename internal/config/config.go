package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockcast.
type Config struct {
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
	Market    Market    `yaml:"market"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	News      News      `yaml:"news"`
	Sentiment Sentiment `yaml:"sentiment"`
	Forecast  Forecast  `yaml:"forecast"`
	Symbols   Symbols   `yaml:"symbols"`
	Storage   Storage   `yaml:"storage"`
}

// Server holds network listener configuration.
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	StaticDir       string        `yaml:"static_dir"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Market selects the historical series source and its caching.
type Market struct {
	Source      string        `yaml:"source"` // "yahoo" or "alpaca"
	CurrentTTL  time.Duration `yaml:"current_ttl"`
	YearTTL     time.Duration `yaml:"year_ttl"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
	Retries     int           `yaml:"retries"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// News configures article retrieval for sentiment.
type News struct {
	Sources        []string      `yaml:"sources"` // tried in order: newsdata, alpaca, google
	NewsDataAPIKey string        `yaml:"newsdata_api_key"`
	NewsDataURL    string        `yaml:"newsdata_url"`
	PageSize       int           `yaml:"page_size"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Sentiment configures the scorer and the background sentiment pipeline.
type Sentiment struct {
	Scorer         string        `yaml:"scorer"` // "huggingface", "claude" or "lexicon"
	HFToken        string        `yaml:"hf_token"`
	HFModelURL     string        `yaml:"hf_model_url"`
	ClaudeAPIKey   string        `yaml:"claude_api_key"`
	ClaudeModel    string        `yaml:"claude_model"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	MaxEntries     int           `yaml:"max_entries"`
	WaitTimeout    time.Duration `yaml:"wait_timeout"`
	ComputeTimeout time.Duration `yaml:"compute_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
}

// Forecast configures the forecast engine.
type Forecast struct {
	Location      string  `yaml:"location"`
	IntervalWidth float64 `yaml:"interval_width"`
	Samples       int     `yaml:"samples"`
	Seed          uint64  `yaml:"seed"`
}

// Symbols configures the known-symbol list.
type Symbols struct {
	SourceURL    string `yaml:"source_url"`
	ReferenceCSV string `yaml:"reference_csv"`
	RefreshCron  string `yaml:"refresh_cron"`
}

// Storage holds paths for optional persistence. Empty values disable the
// corresponding store.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads a .env file if present, then the YAML configuration at path
// (a missing file is not an error), applies environment variable overrides
// and fills in defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STOCKCAST_STATIC_DIR"); v != "" {
		cfg.Server.StaticDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("STOCKCAST_MARKET_SOURCE"); v != "" {
		cfg.Market.Source = v
	}

	if v := os.Getenv("NEWSDATA_API_KEY"); v != "" {
		cfg.News.NewsDataAPIKey = v
	}

	if v := os.Getenv("STOCKCAST_SCORER"); v != "" {
		cfg.Sentiment.Scorer = v
	}
	if v := os.Getenv("HF_API_TOKEN"); v != "" {
		cfg.Sentiment.HFToken = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Sentiment.ClaudeAPIKey = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Market.Source == "" {
		cfg.Market.Source = "yahoo"
	}
	if cfg.Market.CurrentTTL == 0 {
		cfg.Market.CurrentTTL = 5 * time.Minute
	}
	if cfg.Market.YearTTL == 0 {
		cfg.Market.YearTTL = time.Hour
	}
	if cfg.Market.NegativeTTL == 0 {
		cfg.Market.NegativeTTL = time.Minute
	}
	if cfg.Market.Retries == 0 {
		cfg.Market.Retries = 3
	}

	if cfg.Alpaca.Feed == "" {
		cfg.Alpaca.Feed = "iex"
	}

	if len(cfg.News.Sources) == 0 {
		cfg.News.Sources = []string{"newsdata", "alpaca", "google"}
	}
	if cfg.News.NewsDataURL == "" {
		cfg.News.NewsDataURL = "https://newsdata.io/api/1"
	}
	if cfg.News.PageSize == 0 {
		cfg.News.PageSize = 10
	}
	if cfg.News.RatePerSecond == 0 {
		cfg.News.RatePerSecond = 1
	}
	if cfg.News.Timeout == 0 {
		cfg.News.Timeout = 10 * time.Second
	}

	if cfg.Sentiment.Scorer == "" {
		cfg.Sentiment.Scorer = "huggingface"
	}
	if cfg.Sentiment.HFModelURL == "" {
		cfg.Sentiment.HFModelURL = "https://api-inference.huggingface.co/models/yiyanghkust/finbert-tone"
	}
	if cfg.Sentiment.ClaudeModel == "" {
		cfg.Sentiment.ClaudeModel = "claude-sonnet-4-20250514"
	}
	if cfg.Sentiment.CacheTTL == 0 {
		cfg.Sentiment.CacheTTL = time.Hour
	}
	if cfg.Sentiment.MaxEntries == 0 {
		cfg.Sentiment.MaxEntries = 100
	}
	if cfg.Sentiment.WaitTimeout == 0 {
		cfg.Sentiment.WaitTimeout = 10 * time.Second
	}
	if cfg.Sentiment.ComputeTimeout == 0 {
		cfg.Sentiment.ComputeTimeout = time.Minute
	}
	if cfg.Sentiment.MaxConcurrent == 0 {
		cfg.Sentiment.MaxConcurrent = 4
	}

	if cfg.Forecast.Location == "" {
		cfg.Forecast.Location = "UTC"
	}
	if cfg.Forecast.IntervalWidth == 0 {
		cfg.Forecast.IntervalWidth = 0.8
	}
	if cfg.Forecast.Samples == 0 {
		cfg.Forecast.Samples = 300
	}

	if cfg.Symbols.SourceURL == "" {
		cfg.Symbols.SourceURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"
	}
	if cfg.Symbols.RefreshCron == "" {
		cfg.Symbols.RefreshCron = "@every 24h"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Market.Source {
	case "yahoo":
	case "alpaca":
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("market.source alpaca requires alpaca.api_key and alpaca.api_secret")
		}
	default:
		return fmt.Errorf("market.source %q must be yahoo or alpaca", c.Market.Source)
	}

	for _, src := range c.News.Sources {
		switch src {
		case "newsdata", "alpaca", "google":
		default:
			return fmt.Errorf("news.sources: unknown source %q", src)
		}
	}

	switch c.Sentiment.Scorer {
	case "huggingface", "claude", "lexicon":
	default:
		return fmt.Errorf("sentiment.scorer %q must be huggingface, claude or lexicon", c.Sentiment.Scorer)
	}
	if c.Sentiment.MaxConcurrent < 1 {
		return fmt.Errorf("sentiment.max_concurrent must be positive")
	}

	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1)")
	}
	if c.Forecast.Samples < 1 {
		return fmt.Errorf("forecast.samples must be positive")
	}
	if _, err := time.LoadLocation(c.Forecast.Location); err != nil {
		return fmt.Errorf("forecast.location: %w", err)
	}

	return nil
}
