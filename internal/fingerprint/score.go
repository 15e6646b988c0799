package fingerprint

import (
	"math"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// Metrics are the aggregate inputs to the score formula.
type Metrics struct {
	MentionRate       float64  // fraction of valid results that mentioned the business, 0..1
	SentimentScore    float64  // weighted mean over {positive:1, neutral:0.5, negative:0}, 0..1
	ConfidenceLevel   float64  // weighted mean of non-null accuracy self-assessments, 0..1
	AvgRankPosition   *float64 // mean of non-null rank positions, nil when nothing ranked
	SuccessfulQueries int
	TotalQueries      int
}

// Aggregate computes Metrics from a batch of results. Only valid results
// enter the aggregation; per-model weights apply to the sentiment and
// accuracy means, while mention rate stays an unweighted fraction.
func Aggregate(results []model.LLMResult, roster *Roster, totalQueries int) Metrics {
	valid := ValidResults(results)

	m := Metrics{
		SuccessfulQueries: len(valid),
		TotalQueries:      totalQueries,
	}
	if len(valid) == 0 {
		return m
	}

	mentioned := 0
	var sentSum, sentWeight float64
	var accSum, accWeight float64
	var rankSum float64
	ranked := 0

	for _, r := range valid {
		w := roster.Weight(r.Model)

		if r.Mentioned {
			mentioned++
		}
		if r.Sentiment != nil {
			sentSum += sentimentValue(*r.Sentiment) * w
			sentWeight += w
		}
		if r.Accuracy != nil {
			accSum += *r.Accuracy * w
			accWeight += w
		}
		if r.RankPosition != nil {
			rankSum += float64(*r.RankPosition)
			ranked++
		}
	}

	m.MentionRate = float64(mentioned) / float64(len(valid))
	if sentWeight > 0 {
		m.SentimentScore = sentSum / sentWeight
	}
	if accWeight > 0 {
		m.ConfidenceLevel = accSum / accWeight
	}
	if ranked > 0 {
		avg := rankSum / float64(ranked)
		m.AvgRankPosition = &avg
	}
	return m
}

func sentimentValue(s model.Sentiment) float64 {
	switch s {
	case model.SentimentPositive:
		return 1
	case model.SentimentNegative:
		return 0
	default:
		return 0.5
	}
}

// ComputeScore turns aggregate metrics into the 0-100 visibility score.
// Weighted sum of mention rate, sentiment, and confidence, plus a bonus
// for high rank positions, minus a penalty scaled by the query failure
// rate. Deterministic for identical inputs.
func ComputeScore(m Metrics) int {
	score := m.MentionRate*40 + m.SentimentScore*25 + m.ConfidenceLevel*20

	if m.AvgRankPosition != nil {
		score += math.Max(0, 15-(*m.AvgRankPosition-1)*3)
	}

	if m.TotalQueries > 0 {
		failureRate := 1 - float64(m.SuccessfulQueries)/float64(m.TotalQueries)
		score -= failureRate * 10
	}

	return clamp(int(math.RoundToEven(score)), 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
