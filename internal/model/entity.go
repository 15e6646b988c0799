package model

// PublishTarget selects which remote knowledge base receives the entity.
type PublishTarget string

const (
	TargetTest       PublishTarget = "test"
	TargetProduction PublishTarget = "production"
)

// Term is a language-tagged label or description value.
type Term struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// ClaimValue is one typed statement value under a property.
// Confidence orders truncation when the builder is over budget; it is not
// part of the wire document.
type ClaimValue struct {
	Type       string  `json:"type"`
	Value      any     `json:"value"`
	Confidence float64 `json:"-"`
}

// Claim value types understood by the remote knowledge base.
const (
	ClaimTypeItem   = "wikibase-entityid"
	ClaimTypeString = "string"
	ClaimTypeURL    = "url"
)

// EntityDocument is the labels/descriptions/claims structure submitted to
// the remote publish API. Labels and descriptions must each contain an "en"
// entry before submission.
type EntityDocument struct {
	Labels       map[string]Term         `json:"labels"`
	Descriptions map[string]Term         `json:"descriptions"`
	Claims       map[string][]ClaimValue `json:"claims,omitempty"`
}

// PublishResult is the terminal output of one publish attempt.
type PublishResult struct {
	Success     bool          `json:"success"`
	QID         string        `json:"qid,omitempty"`
	EntityID    string        `json:"entity_id"`
	PublishedTo PublishTarget `json:"published_to"`
	Error       string        `json:"error,omitempty"`
}
