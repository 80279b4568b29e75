// Package router maintains the registry of domain adapters and selects one
// per request, either by exact domain name or by scoring domain keywords
// against a free-text query.
package router

import (
	"strings"

	"github.com/dsla-ai/dsla/internal/adapter"
)

// Router holds registered adapters and their routing keywords. It is not
// safe for concurrent mutation; register all adapters at startup.
type Router struct {
	// adapters maps domain name to its adapter.
	adapters map[string]adapter.Adapter
	// keywords maps domain name to its routing keywords.
	keywords map[string][]string
	// order preserves registration order so keyword-score ties resolve
	// deterministically to the earliest registered domain.
	order []string
}

// Info describes a registered adapter for listing endpoints.
type Info struct {
	// Domain is the adapter's domain identifier.
	Domain string `json:"domain"`
	// Keywords are the routing keywords for this domain.
	Keywords []string `json:"keywords"`
	// Tools are the names of the adapter's tools.
	Tools []string `json:"tools"`
	// Schema is the adapter's input/output schema.
	Schema adapter.Schema `json:"schema"`
}

// New constructs an empty Router.
func New() *Router {
	return &Router{
		adapters: make(map[string]adapter.Adapter),
		keywords: make(map[string][]string),
	}
}

// Register adds an adapter under its domain name. When keywords is empty the
// lowercased domain name is used as the only keyword. Registering the same
// domain again replaces the previous adapter and keeps its original order.
func (r *Router) Register(a adapter.Adapter, keywords []string) {
	domain := a.Domain()
	if _, exists := r.adapters[domain]; !exists {
		r.order = append(r.order, domain)
	}
	r.adapters[domain] = a

	if len(keywords) == 0 {
		keywords = []string{strings.ToLower(domain)}
	}
	r.keywords[domain] = keywords
}

// Get returns the adapter registered under the exact domain name.
func (r *Router) Get(domain string) (adapter.Adapter, bool) {
	a, ok := r.adapters[domain]
	return a, ok
}

// Route scores every domain by the number of its keywords appearing as
// substrings of the lowercased query and returns the highest-scoring
// adapter. A tie goes to the earliest registered domain. When no keyword
// matches at all, Route reports false.
func (r *Router) Route(query string) (adapter.Adapter, bool) {
	queryLower := strings.ToLower(query)

	bestDomain := ""
	bestScore := 0
	for _, domain := range r.order {
		score := 0
		for _, kw := range r.keywords[domain] {
			if strings.Contains(queryLower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			bestDomain = domain
			bestScore = score
		}
	}

	if bestScore == 0 {
		return nil, false
	}
	return r.adapters[bestDomain], true
}

// Domains returns all registered domain names in registration order.
func (r *Router) Domains() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Unregister removes a domain and reports whether it was registered.
func (r *Router) Unregister(domain string) bool {
	if _, ok := r.adapters[domain]; !ok {
		return false
	}
	delete(r.adapters, domain)
	delete(r.keywords, domain)
	for i, d := range r.order {
		if d == domain {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Info returns listing information for a registered domain.
func (r *Router) Info(domain string) (*Info, bool) {
	a, ok := r.adapters[domain]
	if !ok {
		return nil, false
	}

	tools := a.Tools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}

	return &Info{
		Domain:   domain,
		Keywords: r.keywords[domain],
		Tools:    names,
		Schema:   a.Schema(),
	}, true
}
