package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockcast/internal/domain"
)

// DefaultHuggingFaceURL is the hosted FinBERT tone classifier.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/yiyanghkust/finbert-tone"

const hfBatchSize = 16

// Compile-time interface check.
var _ Scorer = (*HuggingFace)(nil)

// HuggingFace scores texts with a text-classification model served by the
// Hugging Face inference API.
type HuggingFace struct {
	client *resty.Client
	url    string
}

// NewHuggingFace creates a scorer for the model at url. 503 responses, which
// the inference API returns while a model is loading, are retried.
func NewHuggingFace(url, token string, timeout time.Duration) *HuggingFace {
	if url == "" {
		url = DefaultHuggingFaceURL
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() == 503
		})
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HuggingFace{client: client, url: url}
}

// LoadHuggingFace returns a loader that checks the endpoint with a single
// warm-up classification.
func LoadHuggingFace(url, token string, timeout time.Duration) func(context.Context) (Scorer, error) {
	return func(ctx context.Context) (Scorer, error) {
		if token == "" {
			return nil, fmt.Errorf("hugging face api token not configured")
		}
		h := NewHuggingFace(url, token, timeout)
		if _, err := h.Score(ctx, []string{"Shares were unchanged."}); err != nil {
			return nil, fmt.Errorf("warm-up classification: %w", err)
		}
		return h, nil
	}
}

type hfLabel struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score implements Scorer.
func (h *HuggingFace) Score(ctx context.Context, texts []string) ([]domain.SentimentDetails, error) {
	out := make([]domain.SentimentDetails, 0, len(texts))
	for start := 0; start < len(texts); start += hfBatchSize {
		batch := texts[start:min(start+hfBatchSize, len(texts))]
		rows, err := h.scoreBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (h *HuggingFace) scoreBatch(ctx context.Context, batch []string) ([]domain.SentimentDetails, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"inputs":  batch,
			"options": map[string]bool{"wait_for_model": true},
		}).
		Post(h.url)
	if err != nil {
		return nil, fmt.Errorf("hugging face request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("hugging face status %d: %s", resp.StatusCode(), resp.String())
	}

	labels, err := decodeHFLabels(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(labels) != len(batch) {
		return nil, fmt.Errorf("hugging face returned %d rows for %d inputs", len(labels), len(batch))
	}

	rows := make([]domain.SentimentDetails, len(labels))
	for i, ls := range labels {
		var d domain.SentimentDetails
		for _, l := range ls {
			switch strings.ToLower(l.Label) {
			case "positive":
				d.Positive = l.Score
			case "negative":
				d.Negative = l.Score
			case "neutral":
				d.Neutral = l.Score
			}
		}
		rows[i] = normalize(d)
	}
	return rows, nil
}

// decodeHFLabels accepts both the batched [[...], ...] shape and the flat
// [...] shape returned for a single input.
func decodeHFLabels(body []byte) ([][]hfLabel, error) {
	var nested [][]hfLabel
	if err := json.Unmarshal(body, &nested); err == nil {
		return nested, nil
	}
	var flat []hfLabel
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decoding hugging face response: %w", err)
	}
	return [][]hfLabel{flat}, nil
}
