package fingerprint

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/pkg/llm"
)

const (
	defaultMaxConcurrent = 6

	// Blended judge pricing in USD per million tokens, used for the
	// per-run cost estimate recorded on the analysis row.
	defaultCostPerMTok = 3.0
)

// Engine runs the judge fan-out for one business and aggregates the
// answers into a FingerprintAnalysis.
type Engine struct {
	querier       llm.Querier
	roster        *Roster
	maxConcurrent int
	costPerMTok   float64
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMaxConcurrent bounds the number of in-flight judge queries.
func WithMaxConcurrent(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithCostPerMTok overrides the blended per-million-token pricing.
func WithCostPerMTok(usd float64) EngineOption {
	return func(e *Engine) {
		if usd > 0 {
			e.costPerMTok = usd
		}
	}
}

// NewEngine creates a fan-out engine over the given querier and roster.
func NewEngine(querier llm.Querier, roster *Roster, opts ...EngineOption) *Engine {
	e := &Engine{
		querier:       querier,
		roster:        roster,
		maxConcurrent: defaultMaxConcurrent,
		costPerMTok:   defaultCostPerMTok,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RunOptions configures one fingerprint run.
type RunOptions struct {
	IncludeCompetitors bool
}

// Run fans one prompt per (model × category) out to the judges, collects
// the answers with per-query isolation, and aggregates them. A failed or
// malformed query becomes an error-tagged result excluded from
// aggregation; a run with zero valid results still returns an analysis
// with score 0 so the history row is never missing.
func (e *Engine) Run(ctx context.Context, bctx model.BusinessContext, opts RunOptions) (*model.FingerprintAnalysis, error) {
	categories := model.AllCategories()
	total := len(e.roster.Models) * len(categories)

	var (
		mu      sync.Mutex
		results = make([]model.LLMResult, 0, total)
		board   *leaderboardBuilder
	)
	if opts.IncludeCompetitors {
		board = newLeaderboardBuilder(bctx.Name)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for _, modelName := range e.roster.Models {
		for _, category := range categories {
			g.Go(func() error {
				res, competitors := e.queryOne(gctx, modelName, category, bctx)

				mu.Lock()
				results = append(results, res)
				if board != nil && res.Error == "" {
					board.add(res, competitors)
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := Aggregate(results, e.roster, total)
	score := ComputeScore(metrics)

	tokens := 0
	for _, r := range results {
		tokens += r.TokensUsed
	}

	analysis := &model.FingerprintAnalysis{
		ID:              uuid.NewString(),
		BusinessID:      bctx.BusinessID,
		BusinessName:    bctx.Name,
		VisibilityScore: score,
		MentionRate:     metrics.MentionRate * 100,
		SentimentScore:  metrics.SentimentScore,
		AccuracyScore:   metrics.ConfidenceLevel,
		AvgRankPosition: metrics.AvgRankPosition,
		LLMResults:      results,
		TokensUsed:      tokens,
		EstimatedCost:   float64(tokens) / 1_000_000 * e.costPerMTok,
		GeneratedAt:     time.Now().UTC(),
	}
	if board != nil {
		analysis.Leaderboard = board.build()
	}

	zap.L().Info("fingerprint run complete",
		zap.String("business_id", bctx.BusinessID),
		zap.Int("score", score),
		zap.Int("valid_results", metrics.SuccessfulQueries),
		zap.Int("total_queries", total),
		zap.Int("tokens", tokens))

	return analysis, nil
}

// queryOne issues a single judge query and converts the outcome into an
// LLMResult. Errors are absorbed into the result, never returned.
func (e *Engine) queryOne(ctx context.Context, modelName string, category model.PromptCategory, bctx model.BusinessContext) (model.LLMResult, []string) {
	prompt := BuildPrompt(category, bctx)

	qr, err := e.querier.Query(ctx, modelName, prompt)
	if err != nil {
		zap.L().Warn("judge query failed",
			zap.String("model", modelName),
			zap.String("category", string(category)),
			zap.Error(err))
		return model.LLMResult{
			Model:      modelName,
			PromptType: category,
			Error:      err.Error(),
		}, nil
	}

	ans, err := parseJudgeAnswer(qr.Content)
	if err != nil {
		zap.L().Warn("judge answer unparseable",
			zap.String("model", modelName),
			zap.String("category", string(category)),
			zap.Error(err))
		return model.LLMResult{
			Model:       modelName,
			PromptType:  category,
			RawResponse: qr.Content,
			TokensUsed:  qr.TokensUsed,
			Error:       err.Error(),
		}, nil
	}

	return ans.toResult(modelName, category, qr.Content, qr.TokensUsed), ans.Competitors
}
