package router

import (
	"testing"

	"github.com/dsla-ai/dsla/internal/adapter"
)

// newTestRouter registers both built-in adapters under their production
// keyword sets.
func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r := New()
	r.Register(adapter.NewLegalDoc(),
		[]string{"legal", "contract", "agreement", "clause", "compliance", "law", "document"})
	r.Register(adapter.NewTradingOps(),
		[]string{"trading", "trade", "market", "stock", "crypto", "portfolio", "finance", "investment"})
	return r
}

func Test_Router_RouteByKeywords(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	tests := []struct {
		name       string
		query      string
		wantDomain string
	}{
		{"legal query", "Review this contract for compliance issues", adapter.DomainLegalDoc},
		{"trading query", "Analyze the stock market trend for my portfolio", adapter.DomainTradingOps},
		{"case insensitive", "CONTRACT REVIEW NEEDED", adapter.DomainLegalDoc},
		{"higher score wins", "legal document about a trade", adapter.DomainLegalDoc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, ok := r.Route(tt.query)
			if !ok {
				t.Fatalf("route %q: no adapter found", tt.query)
			}
			if a.Domain() != tt.wantDomain {
				t.Errorf("route %q: want %s, got %s", tt.query, tt.wantDomain, a.Domain())
			}
		})
	}
}

func Test_Router_RouteNoMatch(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	if _, ok := r.Route("bake a chocolate cake"); ok {
		t.Error("query with no keyword match must not route")
	}
	if _, ok := r.Route(""); ok {
		t.Error("empty query must not route")
	}
}

func Test_Router_TieGoesToEarliestRegistered(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	// One keyword from each domain: "law" (legal) and "finance" (trading).
	a, ok := r.Route("law and finance")
	if !ok {
		t.Fatal("want a route for tied query")
	}
	if a.Domain() != adapter.DomainLegalDoc {
		t.Errorf("tie must go to the earliest registered domain, got %s", a.Domain())
	}
}

func Test_Router_GetByDomain(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	a, ok := r.Get(adapter.DomainTradingOps)
	if !ok || a.Domain() != adapter.DomainTradingOps {
		t.Errorf("want trading_ops adapter, got %v/%v", a, ok)
	}
	if _, ok := r.Get("medical"); ok {
		t.Error("unknown domain must not resolve")
	}
}

func Test_Router_EmptyKeywordsDefaultToDomainName(t *testing.T) {
	t.Parallel()
	r := New()
	r.Register(adapter.NewLegalDoc(), nil)

	a, ok := r.Route("analyze this legal_doc please")
	if !ok || a.Domain() != adapter.DomainLegalDoc {
		t.Error("domain name must serve as the fallback keyword")
	}
}

func Test_Router_ReRegisterKeepsOrder(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)
	r.Register(adapter.NewLegalDoc(), []string{"statute"})

	domains := r.Domains()
	if len(domains) != 2 || domains[0] != adapter.DomainLegalDoc {
		t.Errorf("re-registration must keep original order, got %v", domains)
	}

	// Old keywords are replaced.
	if _, ok := r.Route("review this contract"); ok {
		t.Error("replaced keywords must no longer route")
	}
	if a, ok := r.Route("check the statute"); !ok || a.Domain() != adapter.DomainLegalDoc {
		t.Error("new keywords must route")
	}
}

func Test_Router_Unregister(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	if !r.Unregister(adapter.DomainLegalDoc) {
		t.Fatal("want true for registered domain")
	}
	if r.Unregister(adapter.DomainLegalDoc) {
		t.Error("want false for already removed domain")
	}
	if _, ok := r.Route("review this contract"); ok {
		t.Error("unregistered domain must not route")
	}
	if got := r.Domains(); len(got) != 1 || got[0] != adapter.DomainTradingOps {
		t.Errorf("want only trading_ops left, got %v", got)
	}
}

func Test_Router_Info(t *testing.T) {
	t.Parallel()
	r := newTestRouter(t)

	info, ok := r.Info(adapter.DomainLegalDoc)
	if !ok {
		t.Fatal("want info for registered domain")
	}
	if info.Domain != adapter.DomainLegalDoc {
		t.Errorf("want legal_doc, got %s", info.Domain)
	}
	if len(info.Keywords) != 7 {
		t.Errorf("want 7 keywords, got %d", len(info.Keywords))
	}
	if len(info.Tools) != 4 {
		t.Errorf("want 4 tool names, got %d", len(info.Tools))
	}

	if _, ok := r.Info("medical"); ok {
		t.Error("unknown domain must have no info")
	}
}
