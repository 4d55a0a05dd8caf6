package sentiment

import (
	"context"
	"strings"
	"unicode"

	"stockcast/internal/domain"
)

// Compile-time interface check.
var _ Scorer = Lexicon{}

var positiveWords = wordSet(`
	beat beats exceeded exceeds gain gains gained growth grow grew surge surged surges
	rally rallied rallies record profit profitable profits upgrade upgraded outperform
	strong stronger strength boost boosted rise rises rising rose soar soared jump jumped
	bullish optimistic positive improve improved improvement expand expansion buyback
	dividend innovative success successful win wins won breakthrough robust upbeat
`)

var negativeWords = wordSet(`
	miss missed misses loss losses lost decline declined declines drop dropped drops
	fall falls fell plunge plunged slump slumped downgrade downgraded underperform weak
	weaker weakness cut cuts layoff layoffs lawsuit probe investigation fine fined
	bearish pessimistic negative warn warns warning recall bankruptcy default debt
	slowdown concern concerns risk risks fraud scandal delay delayed halt halted
`)

func wordSet(s string) map[string]struct{} {
	m := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		m[w] = struct{}{}
	}
	return m
}

// Lexicon is an offline scorer that counts finance-specific polarity words.
// Each matched word shifts probability mass away from neutral.
type Lexicon struct{}

// LoadLexicon returns a loader for the lexicon scorer. It never fails.
func LoadLexicon() func(context.Context) (Scorer, error) {
	return func(context.Context) (Scorer, error) { return Lexicon{}, nil }
}

// Score implements Scorer.
func (Lexicon) Score(ctx context.Context, texts []string) ([]domain.SentimentDetails, error) {
	rows := make([]domain.SentimentDetails, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows[i] = scoreLexicon(t)
	}
	return rows, nil
}

func scoreLexicon(text string) domain.SentimentDetails {
	var pos, neg float64
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return domain.SentimentDetails{Neutral: 1}
	}
	neutral := 1 / (1 + total)
	return domain.SentimentDetails{
		Positive: (1 - neutral) * pos / total,
		Negative: (1 - neutral) * neg / total,
		Neutral:  neutral,
	}
}
