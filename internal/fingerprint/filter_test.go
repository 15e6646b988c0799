package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mentionlab/visibility-engine/internal/model"
)

func TestValidResults_DropsMalformed(t *testing.T) {
	results := []model.LLMResult{
		{Model: "a", PromptType: model.CategoryFactual, Mentioned: true},
		{Model: "", PromptType: model.CategoryFactual},               // missing model
		{Model: "b", PromptType: ""},                                 // missing prompt type
		{Model: "c", PromptType: model.CategoryOpinion, Error: "rl"}, // errored
		{Model: "d", PromptType: model.CategoryRecommendation},
	}

	valid := ValidResults(results)
	assert.Len(t, valid, 2)
	assert.Equal(t, "a", valid[0].Model)
	assert.Equal(t, "d", valid[1].Model)
}

func TestValidResults_Empty(t *testing.T) {
	assert.Empty(t, ValidResults(nil))
	assert.Empty(t, ValidResults([]model.LLMResult{}))
}

func TestByCategory(t *testing.T) {
	results := []model.LLMResult{
		{Model: "a", PromptType: model.CategoryFactual},
		{Model: "b", PromptType: model.CategoryFactual},
		{Model: "a", PromptType: model.CategoryOpinion},
	}

	grouped := ByCategory(results)
	assert.Len(t, grouped[model.CategoryFactual], 2)
	assert.Len(t, grouped[model.CategoryOpinion], 1)
	assert.Empty(t, grouped[model.CategoryRecommendation])
}

func TestMentionedAndRanked(t *testing.T) {
	rank := 2
	results := []model.LLMResult{
		{Model: "a", PromptType: model.CategoryFactual, Mentioned: true, RankPosition: &rank},
		{Model: "b", PromptType: model.CategoryFactual, Mentioned: false},
	}

	assert.Len(t, Mentioned(results), 1)
	assert.Len(t, Ranked(results), 1)
}
