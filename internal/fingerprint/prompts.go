// Package fingerprint implements the judge fan-out that measures how
// visible a business is to AI assistants, and the aggregation of those
// answers into a single 0-100 visibility score.
package fingerprint

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/mentionlab/visibility-engine/internal/model"
)

// Roster is the set of judge models a fingerprint run fans out to, with
// optional per-model aggregation weights. Missing weights default to 1.0.
type Roster struct {
	Models  []string           `yaml:"models"`
	Weights map[string]float64 `yaml:"weights"`
}

// LoadRoster reads a roster file. The file is optional configuration; the
// caller falls back to the config defaults when path is empty.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fingerprint: read roster")
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "fingerprint: parse roster")
	}
	if len(r.Models) == 0 {
		return nil, eris.New("fingerprint: roster has no models")
	}
	return &r, nil
}

// Weight returns the aggregation weight for a model, defaulting to uniform.
func (r *Roster) Weight(model string) float64 {
	if w, ok := r.Weights[model]; ok && w > 0 {
		return w
	}
	return 1.0
}

// answerFormat is appended to every judge prompt. The self-assessment JSON
// is the only part of the response the aggregation reads.
const answerFormat = `

After your answer, output a JSON object on its own line with this exact shape:
{"mentioned": <bool, whether you mentioned %q in your answer>, "sentiment": <"positive"|"neutral"|"negative"|null>, "rank_position": <int position of %q if your answer ranks businesses, else null>, "accuracy": <0..1 your confidence in the facts you stated, else null>, "competitors": [<names of other businesses your answer mentioned, best first>]}`

// BuildPrompt renders the judge prompt for one category. The prompts ask
// the kinds of questions real users pose to assistants; the business name
// is never asserted as the answer, only probed for.
func BuildPrompt(category model.PromptCategory, bctx model.BusinessContext) string {
	var b strings.Builder

	place := locationPhrase(bctx.Location)
	subject := bctx.Category
	if subject == "" {
		subject = "business"
	}

	switch category {
	case model.CategoryFactual:
		fmt.Fprintf(&b, "What do you know about %s", bctx.Name)
		if place != "" {
			fmt.Fprintf(&b, " in %s", place)
		}
		b.WriteString("? Describe what they do, where they operate, and anything notable about them.")
	case model.CategoryOpinion:
		fmt.Fprintf(&b, "What is the general reputation of %s", bctx.Name)
		if place != "" {
			fmt.Fprintf(&b, " in %s", place)
		}
		b.WriteString("? How do customers tend to feel about them compared to alternatives?")
	case model.CategoryRecommendation:
		fmt.Fprintf(&b, "I'm looking for a good %s", subject)
		if place != "" {
			fmt.Fprintf(&b, " in %s", place)
		}
		b.WriteString(". Which would you recommend, in order of preference?")
	}

	fmt.Fprintf(&b, answerFormat, bctx.Name, bctx.Name)
	return b.String()
}

func locationPhrase(loc *model.Location) string {
	if loc.Empty() {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.State, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
