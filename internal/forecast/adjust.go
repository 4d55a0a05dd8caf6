package forecast

import "stockcast/internal/domain"

// sentimentWeight is the fractional price move applied per unit of
// sentiment score.
const sentimentWeight = 0.01

// AdjustmentFactor returns 1 + score*0.01.
func AdjustmentFactor(score float64) float64 {
	return 1 + score*sentimentWeight
}

// Adjust returns a copy of result with every point's Open, High, Low and
// Close multiplied by AdjustmentFactor(sentiment.Score) and the sentiment
// attached. A nil sentiment returns result unchanged.
func Adjust(result *domain.ForecastResult, sentiment *domain.SentimentResult) *domain.ForecastResult {
	if result == nil || sentiment == nil {
		return result
	}
	f := AdjustmentFactor(sentiment.Score)
	points := make([]domain.ForecastPoint, len(result.Points))
	for i, p := range result.Points {
		p.Open *= f
		p.High *= f
		p.Low *= f
		p.Close *= f
		points[i] = p
	}
	s := *sentiment
	return &domain.ForecastResult{Points: points, Sentiment: &s}
}
