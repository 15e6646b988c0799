package fingerprint

import "github.com/mentionlab/visibility-engine/internal/model"

// ComputeTrend compares the two most recent analysis rows. History must be
// ordered newest first. Fewer than two rows, or a score delta within the
// threshold, reads as stable.
func ComputeTrend(history []model.FingerprintAnalysis, threshold int) model.Trend {
	if len(history) < 2 {
		return model.TrendStable
	}

	delta := history[0].VisibilityScore - history[1].VisibilityScore
	switch {
	case delta > threshold:
		return model.TrendRising
	case delta < -threshold:
		return model.TrendFalling
	default:
		return model.TrendStable
	}
}
