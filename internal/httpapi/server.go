package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"stockcast/internal/sentiment"
	"stockcast/internal/stockview"
	"stockcast/internal/store"
	"stockcast/internal/symbols"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ViewService builds stock views.
type ViewService interface {
	GetStockView(ctx context.Context, req stockview.Request) (*stockview.View, error)
}

// SymbolLister returns the known symbol list.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
	Len() int
}

// Deps are the components a Server exposes. History and StaticDir are
// optional.
type Deps struct {
	Views     ViewService
	Symbols   SymbolLister
	Sentiment *sentiment.Scheduler
	Model     *sentiment.Model
	History   store.SentimentHistory
	StaticDir string
}

// Server serves the stockcast HTTP API.
type Server struct {
	deps     Deps
	validate *validator.Validate
	log      *slog.Logger
}

// NewServer creates a Server.
func NewServer(deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return &Server{
		deps:     deps,
		validate: validate,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/get_stock_data", s.handleGetStockData)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/sentiment/{symbol}", s.handleSentiment)
	mux.HandleFunc("GET /api/sentiment/{symbol}/history", s.handleSentimentHistory)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if dir := s.deps.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
			mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
				http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			})
		} else {
			s.log.Warn("static directory not found, web client disabled", "dir", dir)
		}
	}
}

// Handler returns the mux wrapped with request id, logging, recovery and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	var h http.Handler = mux
	h = corsMiddleware(h)
	h = recoveryMiddleware(s.log, h)
	h = loggingMiddleware(s.log, h)
	return requestIDMiddleware(h)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// internalError logs err with the request id and writes a generic 500.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Error(msg, "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func parseBoolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("query parameter %s must be a boolean", name)
	}
	return b, nil
}

func (s *Server) handleGetStockData(w http.ResponseWriter, r *http.Request) {
	includePrediction, err := parseBoolParam(r, "include_prediction")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeSentiment, err := parseBoolParam(r, "include_sentiment")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req StockDataRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.ChartStyle == "" {
		req.ChartStyle = "candlestick"
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	view, err := s.deps.Views.GetStockView(r.Context(), stockview.Request{
		Symbol:            req.Symbol,
		Duration:          req.Duration,
		ChartStyle:        req.ChartStyle,
		IncludePrediction: includePrediction,
		IncludeSentiment:  includeSentiment,
	})
	switch {
	case errors.Is(err, stockview.ErrInvalidSymbol):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol: %s", req.Symbol))
		return
	case errors.Is(err, stockview.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, stockview.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no data found for %s", strings.ToUpper(req.Symbol)))
		return
	case err != nil:
		s.internalError(w, r, "stock view failed", err)
		return
	}

	writeJSON(w, StockDataResponse{
		StockData:       convertStockData(view.Stock, view.Duration),
		Charts:          ChartsJSON{Main: view.MainChart, Prediction: view.PredictionChart},
		Forecast:        convertForecast(view.Forecast),
		SentimentResult: view.Sentiment,
	})
}

// validationMessage names the first invalid field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return field + " is required"
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", field)
		}
	}
	return "invalid request"
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	syms, err := s.deps.Symbols.Symbols(r.Context())
	if err != nil {
		s.internalError(w, r, "symbol list unavailable", err)
		return
	}
	writeJSON(w, SymbolsResponse{Symbols: syms})
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	symbol := symbols.Normalize(r.PathValue("symbol"))
	if s.deps.Sentiment == nil {
		writeError(w, http.StatusServiceUnavailable, "sentiment not configured")
		return
	}
	result, ok := s.deps.Sentiment.Cache().Get(symbol)
	resp := SentimentResponse{Symbol: symbol, Sentiment: result, Pending: s.deps.Sentiment.InFlight(symbol)}
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleSentimentHistory(w http.ResponseWriter, r *http.Request) {
	symbol := symbols.Normalize(r.PathValue("symbol"))
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "sentiment history not configured")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	records, err := s.deps.History.ListSentiment(r.Context(), symbol, limit)
	if err != nil {
		s.internalError(w, r, "listing sentiment history", err)
		return
	}
	if records == nil {
		records = []store.SentimentRecord{}
	}
	writeJSON(w, SentimentHistoryResponse{Symbol: symbol, Records: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if m := s.deps.Model; m != nil {
		resp.SentimentModel = ModelStatusJSON{Name: m.Name(), Ready: m.Ready()}
		if err := m.Err(); err != nil {
			resp.SentimentModel.Error = err.Error()
			resp.Status = "degraded"
		}
	}
	if s.deps.Symbols != nil {
		resp.Symbols = s.deps.Symbols.Len()
	}
	writeJSON(w, resp)
}
