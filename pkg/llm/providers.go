package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mentionlab/visibility-engine/pkg/anthropic"
	"github.com/mentionlab/visibility-engine/pkg/openai"
)

// anthropicQuerier adapts an anthropic.Client to the Querier interface.
type anthropicQuerier struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicQuerier wraps an Anthropic client as a Querier.
func NewAnthropicQuerier(client anthropic.Client) Querier {
	return &anthropicQuerier{client: client, maxTokens: 1024}
}

func (q *anthropicQuerier) Query(ctx context.Context, model, prompt string) (*QueryResult, error) {
	resp, err := q.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     model,
		MaxTokens: q.maxTokens,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm: anthropic query")
	}

	return &QueryResult{
		Content:    resp.Text,
		TokensUsed: int(resp.Usage.Total()),
		Model:      resp.Model,
	}, nil
}

// chatQuerier adapts an OpenAI-compatible client to the Querier interface.
type chatQuerier struct {
	client    openai.Client
	maxTokens int
}

// NewChatQuerier wraps an OpenAI-compatible chat client as a Querier.
// Used for both OpenAI and Perplexity models.
func NewChatQuerier(client openai.Client) Querier {
	return &chatQuerier{client: client, maxTokens: 1024}
}

func (q *chatQuerier) Query(ctx context.Context, model, prompt string) (*QueryResult, error) {
	resp, err := q.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: &q.maxTokens,
		Messages: []openai.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm: chat query")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.Errorf("llm: model %s returned no choices", model)
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	}

	return &QueryResult{
		Content:    resp.Choices[0].Message.Content,
		TokensUsed: tokens,
		Model:      model,
	}, nil
}
