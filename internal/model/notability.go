package model

// Reference is a single web reference considered by the notability judge.
type Reference struct {
	URL                 string `json:"url"`
	Title               string `json:"title"`
	IsSerious           bool   `json:"is_serious"`
	IsPubliclyAvailable bool   `json:"is_publicly_available"`
	IsIndependent       bool   `json:"is_independent"`
	SourceType          string `json:"source_type,omitempty"`
	TrustScore          int    `json:"trust_score"`
}

// Qualifying reports whether the reference alone can support a notability
// verdict: it must be serious, independent, and publicly available.
func (r Reference) Qualifying() bool {
	return r.IsSerious && r.IsIndependent && r.IsPubliclyAvailable
}

// NotabilityAssessment is the verdict of the notability check. It is
// computed fresh on every publish attempt and gates publishing.
type NotabilityAssessment struct {
	IsNotable             bool        `json:"is_notable"`
	Confidence            float64     `json:"confidence"`
	SeriousReferenceCount int         `json:"serious_reference_count"`
	References            []Reference `json:"references"`
	Summary               string      `json:"summary,omitempty"`
	Recommendations       []string    `json:"recommendations,omitempty"`
}
