package notability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mentionlab/visibility-engine/internal/model"
	"github.com/mentionlab/visibility-engine/internal/resilience"
	"github.com/mentionlab/visibility-engine/pkg/llm"
	"github.com/mentionlab/visibility-engine/pkg/serp"
)

const (
	defaultMaxResults = 10

	// Confidence attached to the zero-hit early return. A business with no
	// public references at all is very unlikely to be notable.
	zeroHitConfidence = 0.9
)

// Checker runs the notability gate: quoted-phrase web search, then an LLM
// judge over the hits, then a combined verdict.
type Checker struct {
	search     serp.Client
	judge      llm.Querier
	judgeModel string
	maxResults int
}

// CheckerOption configures the Checker.
type CheckerOption func(*Checker)

// WithMaxResults bounds how many search hits are submitted to the judge.
func WithMaxResults(n int) CheckerOption {
	return func(c *Checker) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// NewChecker creates a notability checker.
func NewChecker(search serp.Client, judge llm.Querier, judgeModel string, opts ...CheckerOption) *Checker {
	c := &Checker{
		search:     search,
		judge:      judge,
		judgeModel: judgeModel,
		maxResults: defaultMaxResults,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check assesses whether the business is notable enough to publish. The
// gate fails closed: infrastructure failures yield isNotable=false rather
// than an error, so a business is never auto-published on an outage.
func (c *Checker) Check(ctx context.Context, name string, loc *model.Location) (*model.NotabilityAssessment, error) {
	normalized := NormalizeName(name)
	query := searchQuery(normalized, loc)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("serp", "search")
	hits, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]serp.Result, error) {
		return c.search.Search(ctx, query)
	})
	if err != nil {
		zap.L().Warn("notability search failed, failing closed",
			zap.String("query", query),
			zap.Error(err))
		return &model.NotabilityAssessment{
			IsNotable:  false,
			Confidence: 0,
			References: []model.Reference{},
			Summary:    "web search unavailable",
		}, nil
	}

	hits = dedupe(hits, c.maxResults)
	if len(hits) == 0 {
		return &model.NotabilityAssessment{
			IsNotable:  false,
			Confidence: zeroHitConfidence,
			References: []model.Reference{},
			Summary:    "no public references found",
		}, nil
	}

	verdict, err := c.adjudicate(ctx, normalized, hits)
	if err != nil {
		zap.L().Warn("notability judge failed, queueing for review",
			zap.String("name", normalized),
			zap.Error(err))
		return fallbackAssessment(), nil
	}
	return verdict, nil
}

func searchQuery(name string, loc *model.Location) string {
	q := fmt.Sprintf("%q", name)
	if !loc.Empty() {
		for _, p := range []string{loc.City, loc.State} {
			if p != "" {
				q += " " + p
			}
		}
	}
	return q
}

// dedupe drops repeat URLs and truncates to the judge budget.
func dedupe(hits []serp.Result, limit int) []serp.Result {
	seen := make(map[string]bool, len(hits))
	out := make([]serp.Result, 0, len(hits))
	for _, h := range hits {
		key := strings.TrimSuffix(strings.ToLower(h.Link), "/")
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

// judgeVerdict is the structured response expected from the judge.
type judgeVerdict struct {
	MeetsNotability bool              `json:"meets_notability"`
	Confidence      float64           `json:"confidence"`
	References      []model.Reference `json:"references"`
	Summary         string            `json:"summary"`
	Recommendations []string          `json:"recommendations"`
}

const judgePromptHeader = `You are assessing whether a business qualifies for a public knowledge-base entry. A qualifying reference must be serious (substantial editorial coverage, not a directory listing), independent (not published by the business itself), and publicly available.

Business: %s

References found:
%s
Classify each reference and return ONLY a JSON object:
{"meets_notability": <bool>, "confidence": <0..1>, "references": [{"url": "...", "title": "...", "is_serious": <bool>, "is_independent": <bool>, "is_publicly_available": <bool>, "source_type": "<news|directory|social|corporate|review|other>", "trust_score": <0..100>}], "summary": "<one paragraph>", "recommendations": ["..."]}`

// adjudicate submits the hits to the judge and combines its verdict with
// the qualifying-reference requirement: notability needs both the judge's
// yes and at least one serious, independent, public reference, so a single
// self-published source can never carry the verdict.
func (c *Checker) adjudicate(ctx context.Context, name string, hits []serp.Result) (*model.NotabilityAssessment, error) {
	var refs strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&refs, "%d. %s\n   %s\n   %s\n", i+1, h.Title, h.Link, h.Snippet)
	}

	prompt := fmt.Sprintf(judgePromptHeader, name, refs.String())
	qr, err := c.judge.Query(ctx, c.judgeModel, prompt)
	if err != nil {
		return nil, err
	}

	payload := llm.ExtractJSON(qr.Content)
	var verdict judgeVerdict
	if payload == "" || json.Unmarshal([]byte(payload), &verdict) != nil {
		zap.L().Warn("notability verdict unparseable",
			zap.String("name", name),
			zap.String("model", qr.Model))
		return fallbackAssessment(), nil
	}

	qualifying := 0
	for _, r := range verdict.References {
		if r.Qualifying() {
			qualifying++
		}
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	return &model.NotabilityAssessment{
		IsNotable:             verdict.MeetsNotability && qualifying >= 1,
		Confidence:            confidence,
		SeriousReferenceCount: qualifying,
		References:            verdict.References,
		Summary:               verdict.Summary,
		Recommendations:       verdict.Recommendations,
	}, nil
}

// fallbackAssessment is returned when the judge's output cannot be used.
// Low confidence routes the business to the manual-review queue.
func fallbackAssessment() *model.NotabilityAssessment {
	return &model.NotabilityAssessment{
		IsNotable:  false,
		Confidence: 0.5,
		References: []model.Reference{},
		Summary:    "notability verdict could not be parsed; manual review required",
	}
}
