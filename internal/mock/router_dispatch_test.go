package mock

import (
	"strings"
	"testing"

	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
)

func TestRouterCatchAllRespondsWhenNoScenarioHasAPredicate(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{
				Name: "",
				Steps: []model.Step{
					{Keyword: "def", Text: "responseStatus = 200"},
					{Keyword: "def", Text: "response = { ok: true }"},
				},
			},
		},
	}
	router := NewRouter(f, model.NewConfiguration(), obslog.Noop(), nil)
	req := &httpx.IncomingRequest{Method: "GET", Path: "/anything", Headers: map[string][]string{}, Query: map[string][]string{}}

	resp := router.Handle(req)
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
}

func TestRouterPredicateDispatchPicksMatchingScenario(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{
				Name: "pathMatches('/cats/{id}') && methodIs('get')",
				Steps: []model.Step{
					{Keyword: "def", Text: "responseStatus = 200"},
					{Keyword: "def", Text: "response = { name: 'felix' }"},
				},
			},
			{
				Name: "",
				Steps: []model.Step{
					{Keyword: "def", Text: "responseStatus = 404"},
				},
			},
		},
	}
	router := NewRouter(f, model.NewConfiguration(), obslog.Noop(), nil)
	req := &httpx.IncomingRequest{Method: "GET", Path: "/cats/1", Headers: map[string][]string{}, Query: map[string][]string{}}

	resp := router.Handle(req)
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200 (first matching predicate)", resp.Status)
	}
}

func TestRouterFallsThroughToNextScenarioWhenPredicateFails(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{
				Name: "methodIs('post')",
				Steps: []model.Step{
					{Keyword: "def", Text: "responseStatus = 201"},
				},
			},
			{
				Name: "",
				Steps: []model.Step{
					{Keyword: "def", Text: "responseStatus = 404"},
				},
			},
		},
	}
	router := NewRouter(f, model.NewConfiguration(), obslog.Noop(), nil)
	req := &httpx.IncomingRequest{Method: "GET", Path: "/x", Headers: map[string][]string{}, Query: map[string][]string{}}

	resp := router.Handle(req)
	if resp.Status != 404 {
		t.Fatalf("status = %d, want 404 from the catch-all scenario", resp.Status)
	}
}

func TestRouterNoMatchReturns404(t *testing.T) {
	f := &model.Feature{
		Scenarios: []model.Scenario{
			{Name: "methodIs('post')", Steps: []model.Step{{Keyword: "def", Text: "responseStatus = 201"}}},
		},
	}
	router := NewRouter(f, model.NewConfiguration(), obslog.Noop(), nil)
	req := &httpx.IncomingRequest{Method: "GET", Path: "/x", Headers: map[string][]string{}, Query: map[string][]string{}}

	resp := router.Handle(req)
	if resp.Status != 404 {
		t.Fatalf("status = %d, want 404 when no scenario matches", resp.Status)
	}
	if want := `{"error":"no matching scenario"}`; string(resp.Body) != want {
		t.Fatalf("body = %s, want %s", resp.Body, want)
	}
}

func TestRouterCORSPreflightEchoesRequestedHeadersAndAllowsHEAD(t *testing.T) {
	f := &model.Feature{Scenarios: []model.Scenario{{Name: "", Steps: nil}}}
	cfg := model.NewConfiguration()
	cfg.CORS = true
	router := NewRouter(f, cfg, obslog.Noop(), nil)
	req := &httpx.IncomingRequest{
		Method:  "OPTIONS",
		Path:    "/cats",
		Headers: map[string][]string{"Access-Control-Request-Headers": {"X-Custom-Header"}},
		Query:   map[string][]string{},
	}

	resp := router.Handle(req)
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	methods := resp.Headers["Access-Control-Allow-Methods"]
	if len(methods) != 1 || !strings.Contains(methods[0], "HEAD") {
		t.Fatalf("Allow-Methods = %v, want it to include HEAD", methods)
	}
	allowHeaders := resp.Headers["Access-Control-Allow-Headers"]
	if len(allowHeaders) != 1 || allowHeaders[0] != "X-Custom-Header" {
		t.Fatalf("Allow-Headers = %v, want echoed X-Custom-Header", allowHeaders)
	}
}
