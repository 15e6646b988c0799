// Package wikidata implements the MediaWiki/Wikibase publishing protocol:
// login-token fetch, credential submission bound to that token, session
// cookie handling, CSRF edit tokens, entity search, and wbeditentity
// create/update calls.
package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTestBaseURL       = "https://test.wikidata.org/w/api.php"
	defaultProductionBaseURL = "https://www.wikidata.org/w/api.php"
	defaultUserAgent         = "visibility-engine/1.0 (https://github.com/mentionlab/visibility-engine)"

	// TargetTest and TargetProduction select the remote endpoint.
	TargetTest       = "test"
	TargetProduction = "production"
)

// Client defines the knowledge-base publishing operations.
type Client interface {
	// Publish creates a new entity, or updates an existing one when the
	// de-duplication search finds a matching label. The returned EditResult
	// carries a structured API error instead of a Go error when the remote
	// rejects the edit; Go errors are reserved for validation and
	// network-level failures.
	Publish(ctx context.Context, entity EntityData, opts PublishOptions) (*EditResult, error)

	// Update edits an existing entity identified by qid.
	Update(ctx context.Context, qid string, entity EntityData, opts PublishOptions) (*EditResult, error)

	// SearchEntity looks up an existing entity whose label matches the
	// query. Returns the QID of the best match or "" when nothing matches.
	SearchEntity(ctx context.Context, query, target string) (string, error)
}

// Term is a language-tagged label or description.
type Term struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// ClaimValue is a simplified statement value under a property.
type ClaimValue struct {
	Type  string `json:"type"`  // "wikibase-entityid", "string", "url"
	Value any    `json:"value"`
}

// EntityData is the entity document submitted to the edit action.
type EntityData struct {
	Labels       map[string]Term         `json:"labels"`
	Descriptions map[string]Term         `json:"descriptions"`
	Claims       map[string][]ClaimValue `json:"claims,omitempty"`
}

// valid reports whether the document carries the minimum required terms.
func (e EntityData) valid() bool {
	if len(e.Labels) == 0 || len(e.Descriptions) == 0 {
		return false
	}
	if e.Labels["en"].Value == "" || e.Descriptions["en"].Value == "" {
		return false
	}
	return true
}

// PublishOptions configures a single publish attempt.
type PublishOptions struct {
	Target string // "test" or "production"; defaults to "test"
	DryRun bool   // authenticate and validate but skip the final submit
}

// EditResult is the outcome of one edit attempt.
type EditResult struct {
	Success bool
	QID     string
	Created bool // false when the de-duplication search routed to update
	DryRun  bool
	Error   *APIError
}

// APIError is the structured error body returned by the remote API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wikidata: api error %s: %s", e.Code, e.Info)
}

// Credentials holds the bot username and password used for login.
type Credentials struct {
	Username string
	Password string
}

// Option configures the client.
type Option func(*httpClient)

// WithTestBaseURL overrides the test endpoint.
func WithTestBaseURL(url string) Option {
	return func(c *httpClient) {
		c.testURL = url
	}
}

// WithProductionBaseURL overrides the production endpoint.
func WithProductionBaseURL(url string) Option {
	return func(c *httpClient) {
		c.prodURL = url
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit sets a per-second limit on edit submissions.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithUserAgent overrides the default User-Agent header. An empty value
// keeps the default.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

type httpClient struct {
	creds     Credentials
	testURL   string
	prodURL   string
	timeout   time.Duration
	limiter   *rate.Limiter
	userAgent string
	transport http.RoundTripper
}

// NewClient creates a Wikibase publishing client. Sessions are established
// per publish call and never cached across calls.
func NewClient(creds Credentials, opts ...Option) Client {
	c := &httpClient{
		creds:     creds,
		testURL:   defaultTestBaseURL,
		prodURL:   defaultProductionBaseURL,
		timeout:   30 * time.Second,
		limiter:   rate.NewLimiter(2, 2),
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiURL resolves the endpoint for a target. Unknown targets fall back to
// test so a misconfiguration can never write to production.
func (c *httpClient) apiURL(target string) string {
	if target == TargetProduction {
		return c.prodURL
	}
	return c.testURL
}
