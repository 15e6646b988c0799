// Package llm abstracts "send one prompt to a named model" across the
// judge providers on the fingerprint roster.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// QueryResult is the raw outcome of a single prompt sent to one model.
type QueryResult struct {
	Content    string `json:"content"`
	TokensUsed int    `json:"tokens_used"`
	Model      string `json:"model"`
}

// Querier sends a single prompt to a named model.
type Querier interface {
	Query(ctx context.Context, model, prompt string) (*QueryResult, error)
}

// QuerierFunc adapts a function to the Querier interface.
type QuerierFunc func(ctx context.Context, model, prompt string) (*QueryResult, error)

func (f QuerierFunc) Query(ctx context.Context, model, prompt string) (*QueryResult, error) {
	return f(ctx, model, prompt)
}

// Router dispatches queries to provider clients by model-name prefix.
// Every dispatched query carries an explicit timeout so one slow provider
// cannot stall a fan-out.
type Router struct {
	routes  []route
	timeout time.Duration
}

type route struct {
	prefix  string
	querier Querier
}

// RouterOption configures the Router.
type RouterOption func(*Router)

// WithTimeout overrides the default per-query timeout of 45s.
func WithTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRouter creates an empty Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{timeout: 45 * time.Second}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register routes models whose name starts with prefix to q. Longer
// prefixes win over shorter ones regardless of registration order.
func (r *Router) Register(prefix string, q Querier) {
	r.routes = append(r.routes, route{prefix: prefix, querier: q})
}

// Query dispatches the prompt to the provider owning the model name.
func (r *Router) Query(ctx context.Context, model, prompt string) (*QueryResult, error) {
	var best *route
	for i := range r.routes {
		rt := &r.routes[i]
		if !strings.HasPrefix(model, rt.prefix) {
			continue
		}
		if best == nil || len(rt.prefix) > len(best.prefix) {
			best = rt
		}
	}
	if best == nil {
		return nil, eris.Errorf("llm: no provider registered for model %q", model)
	}

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return best.querier.Query(qctx, model, prompt)
}
