package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_DispatchByPrefix(t *testing.T) {
	r := NewRouter()
	r.Register("claude", QuerierFunc(func(_ context.Context, model, _ string) (*QueryResult, error) {
		return &QueryResult{Content: "from anthropic", Model: model}, nil
	}))
	r.Register("gpt", QuerierFunc(func(_ context.Context, model, _ string) (*QueryResult, error) {
		return &QueryResult{Content: "from openai", Model: model}, nil
	}))

	res, err := r.Query(context.Background(), "claude-sonnet-4-5-20250929", "hello")
	require.NoError(t, err)
	assert.Equal(t, "from anthropic", res.Content)

	res, err = r.Query(context.Background(), "gpt-4o", "hello")
	require.NoError(t, err)
	assert.Equal(t, "from openai", res.Content)
}

func TestRouter_LongestPrefixWins(t *testing.T) {
	r := NewRouter()
	r.Register("gpt-4o-mini", QuerierFunc(func(_ context.Context, model, _ string) (*QueryResult, error) {
		return &QueryResult{Content: "mini route", Model: model}, nil
	}))
	r.Register("gpt", QuerierFunc(func(_ context.Context, model, _ string) (*QueryResult, error) {
		return &QueryResult{Content: "generic route", Model: model}, nil
	}))

	res, err := r.Query(context.Background(), "gpt-4o-mini", "hello")
	require.NoError(t, err)
	assert.Equal(t, "mini route", res.Content)

	res, err = r.Query(context.Background(), "gpt-4o", "hello")
	require.NoError(t, err)
	assert.Equal(t, "generic route", res.Content)
}

func TestRouter_UnknownModel(t *testing.T) {
	r := NewRouter()
	r.Register("claude", QuerierFunc(func(_ context.Context, model, _ string) (*QueryResult, error) {
		return &QueryResult{Model: model}, nil
	}))

	_, err := r.Query(context.Background(), "sonar-pro", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider registered")
}

func TestRouter_AppliesTimeout(t *testing.T) {
	r := NewRouter(WithTimeout(10 * time.Millisecond))
	r.Register("slow", QuerierFunc(func(ctx context.Context, model, _ string) (*QueryResult, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return &QueryResult{Model: model}, nil
		}
	}))

	start := time.Now()
	_, err := r.Query(context.Background(), "slow-model", "hello")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
