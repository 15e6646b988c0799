package notability

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/pkg/llm"
	"github.com/mentionlab/visibility-engine/pkg/serp"
)

type searchFunc func(ctx context.Context, query string) ([]serp.Result, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]serp.Result, error) {
	return f(ctx, query)
}

func judgeReturning(calls *int, content string) llm.Querier {
	return llm.QuerierFunc(func(ctx context.Context, m, prompt string) (*llm.QueryResult, error) {
		*calls++
		return &llm.QueryResult{Content: content, Model: m}, nil
	})
}

var portland = &model.Location{City: "Portland", State: "OR"}

func TestCheck_ZeroHitsSkipsJudge(t *testing.T) {
	var gotQuery string
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		gotQuery = query
		return nil, nil
	})
	judgeCalls := 0
	c := NewChecker(search, judgeReturning(&judgeCalls, "{}"), "judge-model")

	got, err := c.Check(context.Background(), "Acme Dental 1700000000000", portland)
	require.NoError(t, err)

	assert.False(t, got.IsNotable)
	assert.InDelta(t, 0.9, got.Confidence, 0.001)
	assert.Equal(t, "no public references found", got.Summary)
	assert.Empty(t, got.References)
	// Zero hits never spend judge tokens.
	assert.Equal(t, 0, judgeCalls)
	// The query quotes the normalized name and appends the location.
	assert.Equal(t, `"Acme Dental" Portland OR`, gotQuery)
}

func TestCheck_SearchFailureFailsClosed(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		return nil, eris.New("search backend down")
	})
	judgeCalls := 0
	c := NewChecker(search, judgeReturning(&judgeCalls, "{}"), "judge-model")

	got, err := c.Check(context.Background(), "Acme Dental", nil)
	require.NoError(t, err)

	assert.False(t, got.IsNotable)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "web search unavailable", got.Summary)
	assert.Equal(t, 0, judgeCalls)
}

func TestCheck_NotableVerdict(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		return []serp.Result{
			{Title: "Local clinic wins award", Link: "https://news.example.com/a", Snippet: "..."},
			{Title: "About us", Link: "https://acmedental.example.com", Snippet: "..."},
		}, nil
	})
	verdict := `{"meets_notability": true, "confidence": 0.85, "references": [
		{"url": "https://news.example.com/a", "title": "Local clinic wins award", "is_serious": true, "is_independent": true, "is_publicly_available": true, "source_type": "news", "trust_score": 80},
		{"url": "https://acmedental.example.com", "title": "About us", "is_serious": false, "is_independent": false, "is_publicly_available": true, "source_type": "corporate", "trust_score": 20}
	], "summary": "Covered by regional press.", "recommendations": []}`
	judgeCalls := 0
	c := NewChecker(search, judgeReturning(&judgeCalls, verdict), "judge-model")

	got, err := c.Check(context.Background(), "Acme Dental", portland)
	require.NoError(t, err)

	assert.True(t, got.IsNotable)
	assert.InDelta(t, 0.85, got.Confidence, 0.001)
	assert.Equal(t, 1, got.SeriousReferenceCount)
	assert.Len(t, got.References, 2)
	assert.Equal(t, 1, judgeCalls)
}

func TestCheck_JudgeYesWithoutQualifyingReferenceIsNo(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		return []serp.Result{{Title: "Blog", Link: "https://acme.example.com/blog", Snippet: "..."}}, nil
	})
	// The judge says yes but every reference is self-published.
	verdict := `{"meets_notability": true, "confidence": 0.7, "references": [
		{"url": "https://acme.example.com/blog", "title": "Blog", "is_serious": true, "is_independent": false, "is_publicly_available": true, "source_type": "corporate", "trust_score": 30}
	], "summary": "Only self-published material."}`
	judgeCalls := 0
	c := NewChecker(search, judgeReturning(&judgeCalls, verdict), "judge-model")

	got, err := c.Check(context.Background(), "Acme Dental", nil)
	require.NoError(t, err)

	assert.False(t, got.IsNotable)
	assert.Equal(t, 0, got.SeriousReferenceCount)
}

func TestCheck_UnparseableVerdictFallsBack(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		return []serp.Result{{Title: "Hit", Link: "https://example.com", Snippet: "..."}}, nil
	})
	judgeCalls := 0
	c := NewChecker(search, judgeReturning(&judgeCalls, "I cannot produce JSON today."), "judge-model")

	got, err := c.Check(context.Background(), "Acme Dental", nil)
	require.NoError(t, err)

	assert.False(t, got.IsNotable)
	assert.InDelta(t, 0.5, got.Confidence, 0.001)
	assert.Contains(t, got.Summary, "manual review required")
}

func TestCheck_DedupesAndBoundsHits(t *testing.T) {
	search := searchFunc(func(ctx context.Context, query string) ([]serp.Result, error) {
		return []serp.Result{
			{Title: "A", Link: "https://example.com/page"},
			{Title: "A again", Link: "https://EXAMPLE.com/page/"},
			{Title: "B", Link: "https://example.com/other"},
			{Title: "C", Link: "https://example.com/third"},
		}, nil
	})

	var prompt string
	judge := llm.QuerierFunc(func(ctx context.Context, m, p string) (*llm.QueryResult, error) {
		prompt = p
		return &llm.QueryResult{Content: `{"meets_notability": false, "confidence": 0.6, "references": []}`, Model: m}, nil
	})
	c := NewChecker(search, judge, "judge-model", WithMaxResults(2))

	_, err := c.Check(context.Background(), "Acme Dental", nil)
	require.NoError(t, err)

	// The duplicate URL is dropped and the budget trims the rest.
	assert.Contains(t, prompt, "https://example.com/page")
	assert.Contains(t, prompt, "https://example.com/other")
	assert.NotContains(t, prompt, "https://example.com/third")
	assert.Equal(t, 1, strings.Count(prompt, "example.com/page"))
}
