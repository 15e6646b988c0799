package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mentionlab/visibility-engine/internal/model"
)

func history(scores ...int) []model.FingerprintAnalysis {
	out := make([]model.FingerprintAnalysis, len(scores))
	for i, s := range scores {
		out[i].VisibilityScore = s
	}
	return out
}

func TestComputeTrend(t *testing.T) {
	threshold := 3

	// Newest first.
	assert.Equal(t, model.TrendRising, ComputeTrend(history(70, 60), threshold))
	assert.Equal(t, model.TrendFalling, ComputeTrend(history(50, 60), threshold))
	assert.Equal(t, model.TrendStable, ComputeTrend(history(62, 60), threshold))

	// A delta exactly at the threshold is still stable.
	assert.Equal(t, model.TrendStable, ComputeTrend(history(63, 60), threshold))
	assert.Equal(t, model.TrendStable, ComputeTrend(history(57, 60), threshold))
	assert.Equal(t, model.TrendRising, ComputeTrend(history(64, 60), threshold))
}

func TestComputeTrend_ShortHistory(t *testing.T) {
	assert.Equal(t, model.TrendStable, ComputeTrend(nil, 3))
	assert.Equal(t, model.TrendStable, ComputeTrend(history(80), 3))
}
