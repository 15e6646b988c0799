package model

import "time"

// PromptCategory identifies which kind of question was posed to a judge model.
type PromptCategory string

const (
	CategoryFactual        PromptCategory = "factual"
	CategoryOpinion        PromptCategory = "opinion"
	CategoryRecommendation PromptCategory = "recommendation"
)

// AllCategories returns the fixed set of prompt categories used in a
// fingerprint run.
func AllCategories() []PromptCategory {
	return []PromptCategory{CategoryFactual, CategoryOpinion, CategoryRecommendation}
}

// Sentiment classifies the tone of a judge's answer toward the business.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// LLMResult is the outcome of a single (model × category) judge query.
// A failed or malformed query carries a non-empty Error and is excluded
// from aggregation.
type LLMResult struct {
	Model        string         `json:"model"`
	PromptType   PromptCategory `json:"prompt_type"`
	Mentioned    bool           `json:"mentioned"`
	Sentiment    *Sentiment     `json:"sentiment,omitempty"`
	RankPosition *int           `json:"rank_position,omitempty"`
	Accuracy     *float64       `json:"accuracy,omitempty"`
	RawResponse  string         `json:"raw_response,omitempty"`
	TokensUsed   int            `json:"tokens_used"`
	Error        string         `json:"error,omitempty"`
}

// CompetitorRank is one row of the competitive leaderboard.
type CompetitorRank struct {
	Name        string   `json:"name"`
	Mentions    int      `json:"mentions"`
	AvgRank     *float64 `json:"avg_rank,omitempty"`
	MarketShare float64  `json:"market_share"`
	IsTarget    bool     `json:"is_target"`
}

// FingerprintAnalysis is one run's aggregate measurement of AI-assistant
// visibility for a business. Rows are append-only: a new run inserts a new
// row and never mutates a prior one.
type FingerprintAnalysis struct {
	ID              string           `json:"id"`
	BusinessID      string           `json:"business_id"`
	BusinessName    string           `json:"business_name"`
	VisibilityScore int              `json:"visibility_score"`
	MentionRate     float64          `json:"mention_rate"`
	SentimentScore  float64          `json:"sentiment_score"`
	AccuracyScore   float64          `json:"accuracy_score"`
	AvgRankPosition *float64         `json:"avg_rank_position,omitempty"`
	LLMResults      []LLMResult      `json:"llm_results"`
	Leaderboard     []CompetitorRank `json:"leaderboard,omitempty"`
	TokensUsed      int              `json:"tokens_used"`
	EstimatedCost   float64          `json:"estimated_cost"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Trend describes the direction of the visibility score between the two
// most recent fingerprint rows.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)
