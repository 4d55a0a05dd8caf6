package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"stockcast/internal/domain"
)

const claudeSystemPrompt = `You are a financial news sentiment classifier.
For each numbered text, estimate the probability that its tone toward the company is positive, negative or neutral.
Reply with only a JSON array, one object per text in input order, each of the form {"positive": p, "negative": n, "neutral": u} with p + n + u = 1.`

// Compile-time interface check.
var _ Scorer = (*Claude)(nil)

type messageFunc func(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)

// Claude scores texts by asking an Anthropic model for class probabilities.
type Claude struct {
	newMessage messageFunc
	model      string
	maxTokens  int64
}

// NewClaude creates a Claude scorer using apiKey.
func NewClaude(apiKey, model string) *Claude {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Claude{newMessage: client.Messages.New, model: model, maxTokens: 2048}
}

// LoadClaude returns a loader that validates the configuration.
func LoadClaude(apiKey, model string) func(context.Context) (Scorer, error) {
	return func(context.Context) (Scorer, error) {
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic api key not configured")
		}
		if model == "" {
			return nil, fmt.Errorf("claude model not configured")
		}
		return NewClaude(apiKey, model), nil
	}
}

// Score implements Scorer.
func (c *Claude) Score(ctx context.Context, texts []string) ([]domain.SentimentDetails, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var prompt strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, strings.ReplaceAll(t, "\n", " "))
	}

	resp, err := c.newMessage(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: claudeSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.String())),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("claude api call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return parseClaudeScores(text.String(), len(texts))
}

// parseClaudeScores extracts the JSON array from a reply and checks it has
// one row per text.
func parseClaudeScores(reply string, n int) ([]domain.SentimentDetails, error) {
	start, end := strings.Index(reply, "["), strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("claude reply has no JSON array")
	}
	var rows []domain.SentimentDetails
	if err := json.Unmarshal([]byte(reply[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("decoding claude reply: %w", err)
	}
	if len(rows) != n {
		return nil, fmt.Errorf("claude returned %d rows for %d texts", len(rows), n)
	}
	for i := range rows {
		rows[i] = normalize(rows[i])
	}
	return rows, nil
}
