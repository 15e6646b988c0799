package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare object",
			raw:  `{"mentioned": true}`,
			want: `{"mentioned": true}`,
		},
		{
			name: "fenced object",
			raw:  "Here you go:\n```json\n{\"mentioned\": false}\n```",
			want: `{"mentioned": false}`,
		},
		{
			name: "prose around object",
			raw:  `Sure. {"confidence": 0.8} Hope that helps!`,
			want: `{"confidence": 0.8}`,
		},
		{
			name: "last balanced object wins",
			raw:  `{"draft": 1} final answer: {"final": {"nested": 2}}`,
			want: `{"final": {"nested": 2}}`,
		},
		{
			name: "no object",
			raw:  "I cannot answer that.",
			want: "",
		},
		{
			name: "unbalanced braces",
			raw:  `"final": 2}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.raw))
		})
	}
}
