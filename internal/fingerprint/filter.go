package fingerprint

import "github.com/mentionlab/visibility-engine/internal/model"

// ValidResults keeps only results that can enter aggregation: both model
// and prompt type present and no recorded error. Everything else is
// dropped silently.
func ValidResults(results []model.LLMResult) []model.LLMResult {
	valid := make([]model.LLMResult, 0, len(results))
	for _, r := range results {
		if r.Model == "" || r.PromptType == "" || r.Error != "" {
			continue
		}
		valid = append(valid, r)
	}
	return valid
}

// ByCategory groups valid results by prompt category.
func ByCategory(results []model.LLMResult) map[model.PromptCategory][]model.LLMResult {
	out := make(map[model.PromptCategory][]model.LLMResult)
	for _, r := range results {
		out[r.PromptType] = append(out[r.PromptType], r)
	}
	return out
}

// Mentioned returns the subset of results where the business was mentioned.
func Mentioned(results []model.LLMResult) []model.LLMResult {
	out := make([]model.LLMResult, 0, len(results))
	for _, r := range results {
		if r.Mentioned {
			out = append(out, r)
		}
	}
	return out
}

// Ranked returns the subset of results carrying a rank position.
func Ranked(results []model.LLMResult) []model.LLMResult {
	out := make([]model.LLMResult, 0, len(results))
	for _, r := range results {
		if r.RankPosition != nil {
			out = append(out, r)
		}
	}
	return out
}
