package fingerprint

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/pkg/llm"
)

// judgeAnswer is the self-assessment JSON a judge appends to its answer.
type judgeAnswer struct {
	Mentioned    bool     `json:"mentioned"`
	Sentiment    *string  `json:"sentiment"`
	RankPosition *int     `json:"rank_position"`
	Accuracy     *float64 `json:"accuracy"`
	Competitors  []string `json:"competitors"`
}

// parseJudgeAnswer extracts and decodes the trailing self-assessment JSON
// from a raw judge response. Models wrap JSON in code fences or prose;
// the last balanced object in the response is taken.
func parseJudgeAnswer(raw string) (*judgeAnswer, error) {
	payload := llm.ExtractJSON(raw)
	if payload == "" {
		return nil, eris.New("fingerprint: no JSON object in response")
	}

	var ans judgeAnswer
	if err := json.Unmarshal([]byte(payload), &ans); err != nil {
		return nil, eris.Wrap(err, "fingerprint: decode judge answer")
	}

	if ans.Sentiment != nil {
		switch model.Sentiment(*ans.Sentiment) {
		case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
		default:
			ans.Sentiment = nil
		}
	}
	if ans.Accuracy != nil && (*ans.Accuracy < 0 || *ans.Accuracy > 1) {
		ans.Accuracy = nil
	}
	if ans.RankPosition != nil && *ans.RankPosition < 1 {
		ans.RankPosition = nil
	}

	return &ans, nil
}

// toResult converts a parsed answer into an LLMResult for one query.
func (a *judgeAnswer) toResult(modelName string, category model.PromptCategory, raw string, tokens int) model.LLMResult {
	res := model.LLMResult{
		Model:        modelName,
		PromptType:   category,
		Mentioned:    a.Mentioned,
		RankPosition: a.RankPosition,
		Accuracy:     a.Accuracy,
		RawResponse:  raw,
		TokensUsed:   tokens,
	}
	if a.Sentiment != nil {
		s := model.Sentiment(*a.Sentiment)
		res.Sentiment = &s
	}
	return res
}
