package fingerprint

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/pkg/llm"
)

var testBusiness = model.BusinessContext{
	BusinessID: "biz-1",
	Name:       "Acme Dental",
	Category:   "dental clinic",
	Location:   &model.Location{City: "Portland", State: "OR"},
}

func TestEngineRun_AllQueriesSucceed(t *testing.T) {
	answer := `{"mentioned": true, "sentiment": "positive", "rank_position": 1, "accuracy": 0.9, "competitors": []}`
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		return &llm.QueryResult{Content: answer, TokensUsed: 100, Model: m}, nil
	})

	roster := &Roster{Models: []string{"model-a", "model-b"}}
	engine := NewEngine(querier, roster)

	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)

	// 2 models x 3 categories
	assert.Len(t, analysis.LLMResults, 6)
	assert.Equal(t, "biz-1", analysis.BusinessID)
	assert.NotEmpty(t, analysis.ID)
	assert.Equal(t, 600, analysis.TokensUsed)
	// mention rate 1.0, sentiment 1.0, accuracy 0.9, rank 1, no failures:
	// 40 + 25 + 18 + 15 = 98
	assert.Equal(t, 98, analysis.VisibilityScore)
	assert.InDelta(t, 100.0, analysis.MentionRate, 0.001)
}

func TestEngineRun_PartialFailureTolerated(t *testing.T) {
	answer := `{"mentioned": true, "sentiment": "neutral", "accuracy": 0.5}`
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		if m == "flaky" {
			return nil, eris.New("rate limited")
		}
		return &llm.QueryResult{Content: answer, TokensUsed: 50, Model: m}, nil
	})

	roster := &Roster{Models: []string{"solid", "flaky"}}
	engine := NewEngine(querier, roster)

	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)

	// All six slots are present; the flaky half carries error tags.
	assert.Len(t, analysis.LLMResults, 6)
	errored := 0
	for _, r := range analysis.LLMResults {
		if r.Error != "" {
			errored++
			assert.Equal(t, "flaky", r.Model)
		}
	}
	assert.Equal(t, 3, errored)
	assert.Positive(t, analysis.VisibilityScore)
}

func TestEngineRun_AllFailedStillReturnsAnalysis(t *testing.T) {
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		return nil, eris.New("provider down")
	})

	roster := &Roster{Models: []string{"only"}}
	engine := NewEngine(querier, roster)

	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.VisibilityScore)
	assert.Len(t, analysis.LLMResults, 3)
	assert.Zero(t, analysis.MentionRate)
}

func TestEngineRun_MalformedAnswerBecomesErrorResult(t *testing.T) {
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		return &llm.QueryResult{Content: "no json here", TokensUsed: 10, Model: m}, nil
	})

	roster := &Roster{Models: []string{"only"}}
	engine := NewEngine(querier, roster)

	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)
	for _, r := range analysis.LLMResults {
		assert.NotEmpty(t, r.Error)
		assert.Equal(t, "no json here", r.RawResponse)
	}
	// Token spend from unparseable answers still counts toward cost.
	assert.Equal(t, 30, analysis.TokensUsed)
}

func TestEngineRun_Leaderboard(t *testing.T) {
	answer := `{"mentioned": true, "sentiment": "positive", "rank_position": 2, "accuracy": 0.8, "competitors": ["Bright Smiles", "City Dental"]}`
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		return &llm.QueryResult{Content: answer, TokensUsed: 80, Model: m}, nil
	})

	roster := &Roster{Models: []string{"only"}}
	engine := NewEngine(querier, roster)

	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{IncludeCompetitors: true})
	require.NoError(t, err)
	require.Len(t, analysis.Leaderboard, 3)

	var target *model.CompetitorRank
	for i := range analysis.Leaderboard {
		if analysis.Leaderboard[i].IsTarget {
			target = &analysis.Leaderboard[i]
		}
	}
	require.NotNil(t, target)
	assert.Equal(t, "Acme Dental", target.Name)
	assert.Equal(t, 3, target.Mentions)
	assert.InDelta(t, 2.0, *target.AvgRank, 0.001)
}

func TestEngineRun_NoLeaderboardWithoutOption(t *testing.T) {
	answer := `{"mentioned": true, "competitors": ["Someone Else"]}`
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		return &llm.QueryResult{Content: answer, Model: m}, nil
	})

	engine := NewEngine(querier, &Roster{Models: []string{"only"}})
	analysis, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)
	assert.Nil(t, analysis.Leaderboard)
}

func TestEngineRun_ConcurrencyBounded(t *testing.T) {
	var inFlight, peak atomic.Int32
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		defer inFlight.Add(-1)
		return &llm.QueryResult{Content: `{"mentioned": false}`, Model: m}, nil
	})

	roster := &Roster{Models: []string{"a", "b", "c", "d"}}
	engine := NewEngine(querier, roster, WithMaxConcurrent(2))

	_, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestEngineRun_PromptVariesByCategory(t *testing.T) {
	var prompts []string
	querier := llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		prompts = append(prompts, prompt)
		return &llm.QueryResult{Content: `{"mentioned": false}`, Model: m}, nil
	})

	engine := NewEngine(querier, &Roster{Models: []string{"only"}}, WithMaxConcurrent(1))
	_, err := engine.Run(context.Background(), testBusiness, RunOptions{})
	require.NoError(t, err)

	require.Len(t, prompts, 3)
	var factual, opinion, recommendation int
	for _, p := range prompts {
		switch {
		case strings.HasPrefix(p, "What do you know about Acme Dental"):
			factual++
		case strings.HasPrefix(p, "What is the general reputation of Acme Dental"):
			opinion++
		case strings.HasPrefix(p, "I'm looking for a good dental clinic"):
			recommendation++
		}
	}
	assert.Equal(t, 1, factual)
	assert.Equal(t, 1, opinion)
	// The recommendation prompt asks by category, never by name.
	assert.Equal(t, 1, recommendation)
}
