package mock

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
)

func TestRouterProceedForwardsToUpstreamVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(201)
		w.Write([]byte(`{"proceeded":true}`))
	}))
	defer upstream.Close()

	f := &model.Feature{
		Scenarios: []model.Scenario{
			{
				Name: "",
				Steps: []model.Step{
					{Keyword: "def", Text: fmt.Sprintf("response = proceed('%s')", upstream.URL)},
				},
			},
		},
	}
	router := NewRouter(f, model.NewConfiguration(), obslog.Noop(), httpx.NewClient())
	req := &httpx.IncomingRequest{Method: "GET", Path: "/cats", Headers: map[string][]string{}, Query: map[string][]string{}}

	resp := router.Handle(req)
	if resp.Status != 201 {
		t.Fatalf("status = %d, want 201 forwarded from upstream", resp.Status)
	}
	if string(resp.Body) != `{"proceeded":true}` {
		t.Fatalf("body = %q, want upstream body forwarded verbatim", resp.Body)
	}
	if got := resp.Headers["X-Upstream"]; len(got) != 1 || got[0] != "yes" {
		t.Fatalf("headers = %v, want X-Upstream: yes forwarded from upstream", resp.Headers)
	}
}
