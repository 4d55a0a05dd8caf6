// Package sentiment scores news text and maintains the per-symbol sentiment
// cache. A Scheduler computes results in the background at most once per
// symbol at a time; request handlers consume them through a bounded wait.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockcast/internal/domain"
)

// ErrModelUnavailable is returned by Model.Score when the scorer failed to
// initialise.
var ErrModelUnavailable = errors.New("sentiment: model unavailable")

// Scorer classifies texts. It returns one row of class probabilities per
// input text, in input order, each summing to about 1.
type Scorer interface {
	Score(ctx context.Context, texts []string) ([]domain.SentimentDetails, error)
}

// Model is the process-wide scorer, loaded once at startup. Its status is
// fixed after LoadModel returns.
type Model struct {
	name     string
	scorer   Scorer
	err      error
	loadedAt time.Time
}

// Compile-time interface check.
var _ Scorer = (*Model)(nil)

// LoadModel runs load and records the outcome. A failed load yields a Model
// whose Score always fails with ErrModelUnavailable.
func LoadModel(ctx context.Context, name string, load func(context.Context) (Scorer, error)) *Model {
	log := slog.Default().With("component", "sentiment-model", "model", name)
	start := time.Now()

	s, err := load(ctx)
	if err == nil && s == nil {
		err = errors.New("loader returned no scorer")
	}
	m := &Model{name: name, scorer: s, err: err, loadedAt: time.Now()}
	if err != nil {
		log.Error("sentiment model failed to load", "error", err)
		m.scorer = nil
		return m
	}
	log.Info("sentiment model ready", "elapsed", time.Since(start).Round(time.Millisecond))
	return m
}

// Name returns the configured model name.
func (m *Model) Name() string { return m.name }

// Ready reports whether the scorer loaded successfully.
func (m *Model) Ready() bool { return m.err == nil }

// Err returns the load error, if any.
func (m *Model) Err() error { return m.err }

// Score implements Scorer.
func (m *Model) Score(ctx context.Context, texts []string) ([]domain.SentimentDetails, error) {
	if m.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, m.err)
	}
	rows, err := m.scorer.Score(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("scorer %s returned %d rows for %d texts", m.name, len(rows), len(texts))
	}
	return rows, nil
}

// normalize rescales d so its probabilities sum to 1. An all-zero row becomes
// fully neutral.
func normalize(d domain.SentimentDetails) domain.SentimentDetails {
	d.Positive, d.Negative, d.Neutral = max(d.Positive, 0), max(d.Negative, 0), max(d.Neutral, 0)
	sum := d.Positive + d.Negative + d.Neutral
	if sum == 0 {
		return domain.SentimentDetails{Neutral: 1}
	}
	return domain.SentimentDetails{
		Positive: d.Positive / sum,
		Negative: d.Negative / sum,
		Neutral:  d.Neutral / sum,
	}
}
