package sentiment

import (
	"context"
	"fmt"

	"stockcast/internal/domain"
	"stockcast/internal/news"
)

// Analyzer aggregates per-article scores into one SentimentResult.
type Analyzer struct {
	scorer Scorer
}

// NewAnalyzer creates an Analyzer over scorer.
func NewAnalyzer(scorer Scorer) *Analyzer {
	return &Analyzer{scorer: scorer}
}

// Overall scores the title and description of each article. An empty batch
// yields the neutral baseline without calling the scorer.
func (a *Analyzer) Overall(ctx context.Context, articles []news.Article) (domain.SentimentResult, error) {
	texts := make([]string, len(articles))
	for i, art := range articles {
		texts[i] = art.Text()
	}
	return a.ScoreTexts(ctx, texts)
}

// ScoreTexts aggregates scores for texts. Each row contributes
// (positive - negative) weighted by its highest probability; the score is the
// mean contribution, details are the mean probabilities and confidence is the
// largest mean probability.
func (a *Analyzer) ScoreTexts(ctx context.Context, texts []string) (domain.SentimentResult, error) {
	if len(texts) == 0 {
		return domain.NeutralSentiment(), nil
	}

	rows, err := a.scorer.Score(ctx, texts)
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("scoring %d texts: %w", len(texts), err)
	}
	if len(rows) != len(texts) {
		return domain.SentimentResult{}, fmt.Errorf("scorer returned %d rows for %d texts", len(rows), len(texts))
	}

	var sum float64
	var mean domain.SentimentDetails
	for _, r := range rows {
		sum += (r.Positive - r.Negative) * r.Max()
		mean.Positive += r.Positive
		mean.Negative += r.Negative
		mean.Neutral += r.Neutral
	}
	n := float64(len(rows))
	mean.Positive /= n
	mean.Negative /= n
	mean.Neutral /= n

	score := sum / n
	return domain.SentimentResult{
		Score:      score,
		Label:      domain.LabelForScore(score),
		Confidence: mean.Max(),
		Details:    mean,
	}, nil
}
