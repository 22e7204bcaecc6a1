// Package mock implements the mock request router: binding an incoming
// HTTP request onto request* scope variables, matching it against a
// mock feature's scenario predicates, running the matched scenario's
// steps, and translating the resulting scope back into an HTTP
// response — including the proceed() pass-through case, where a
// scenario hands back a complete HTTPResponse value to be forwarded
// verbatim.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blackcoderx/talon/internal/httpx"
	"github.com/blackcoderx/talon/internal/jsonval"
	"github.com/blackcoderx/talon/internal/model"
	"github.com/blackcoderx/talon/internal/obslog"
	"github.com/blackcoderx/talon/internal/step"
	"github.com/blackcoderx/talon/internal/value"
	"github.com/blackcoderx/talon/internal/xmlval"
)

// Router dispatches incoming requests against one mock feature's
// scenarios, in file order, first predicate match wins. A single lock
// serializes requests, so predicate matching and step execution see the
// shared scope/scenario state one request at a time, the same
// single-threaded feel a scenario evaluation has outside the mock
// server.
type Router struct {
	Feature  *model.Feature
	Config   *model.Configuration
	Log      obslog.Logger
	CallOnce *model.CallOnceCache
	Client   *httpx.Client

	mu sync.Mutex
}

func NewRouter(f *model.Feature, cfg *model.Configuration, log obslog.Logger, client *httpx.Client) *Router {
	return &Router{Feature: f, Config: cfg, Log: log, CallOnce: model.NewCallOnceCache(), Client: client}
}

// Handle implements httpx.Handler. fasthttp invokes this concurrently
// per-connection, but the router itself isn't safe for concurrent use
// (predicate matching and step execution mutate a per-request scope
// built from shared Feature/CallOnce state), so the whole dispatch runs
// under r.mu: one request's scenario evaluation at a time.
func (r *Router) Handle(req *httpx.IncomingRequest) *httpx.Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	if r.Config.CORS && req.Method == "OPTIONS" {
		return r.corsPreflight(req)
	}

	scope := model.NewScope()
	bindRequestVars(scope, req)

	cfg := r.Config.Clone()
	exec := step.New(scope, cfg, r.Client, r.Log, r.CallOnce)
	pathParamsHolder := map[string]value.Value{}
	registerMockHelpers(exec, req, pathParamsHolder)

	matched, sc := r.findMatch(exec, req, pathParamsHolder)
	if !matched {
		r.Log.Warn("mock: no scenario matched request", map[string]any{"method": req.Method, "path": req.Path})
		return errorResponse(404, "no matching scenario")
	}

	for _, s := range r.Feature.Background {
		if res := exec.Execute(context.Background(), s); res.Status == model.StatusFailed {
			r.Log.Error("mock: background step failed", map[string]any{"error": res.Error})
			return errorResponse(500, res.Error)
		}
	}
	for _, s := range sc.Steps {
		if res := exec.Execute(context.Background(), s); res.Status == model.StatusFailed {
			r.Log.Error("mock: step failed", map[string]any{"error": res.Error, "scenario": sc.Name})
			return errorResponse(500, res.Error)
		}
	}

	resp := r.buildResponse(scope, cfg)
	r.Log.Info("mock: handled request", map[string]any{
		"method": req.Method, "path": req.Path, "status": resp.Status,
		"elapsed": time.Since(start).String(),
	})
	return resp
}

// errorResponse builds a JSON {"error": "..."} body for a failed match
// or step, the shape a calling test expects to unmarshal.
func errorResponse(status int, msg string) *httpx.Response {
	body, err := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	if err != nil {
		body = []byte(`{"error":"` + msg + `"}`)
	}
	return &httpx.Response{
		Status:  status,
		Headers: map[string][]string{"Content-Type": {"application/json"}},
		Body:    body,
	}
}

func (r *Router) corsPreflight(req *httpx.IncomingRequest) *httpx.Response {
	allowHeaders := "*"
	if reqHeaders, ok := req.Headers["Access-Control-Request-Headers"]; ok && len(reqHeaders) > 0 {
		allowHeaders = reqHeaders[0]
	}
	return &httpx.Response{
		Status: 200,
		Headers: map[string][]string{
			"Access-Control-Allow-Origin":  {"*"},
			"Access-Control-Allow-Methods": {"GET, HEAD, POST, PUT, DELETE, PATCH, OPTIONS"},
			"Access-Control-Allow-Headers": {allowHeaders},
		},
	}
}

func (r *Router) findMatch(exec *step.Executor, req *httpx.IncomingRequest, pathParams map[string]value.Value) (bool, model.Scenario) {
	for _, sc := range r.Feature.Scenarios {
		predicate := sc.NameAndDescription()
		for k := range pathParams {
			delete(pathParams, k)
		}
		if strings.TrimSpace(predicate) == "" {
			return true, sc
		}
		result, err := exec.Engine.Eval(predicate)
		if err != nil {
			r.Log.Debug("mock: predicate eval error", map[string]any{"predicate": predicate, "error": err.Error()})
			continue
		}
		if b, ok := result.IntoBool(); ok && b {
			for k, v := range pathParams {
				exec.Scope.Put(k, v)
			}
			return true, sc
		}
	}
	return false, model.Scenario{}
}

func (r *Router) buildResponse(scope *model.Scope, cfg *model.Configuration) *httpx.Response {
	if rv, ok := scope.Get("response"); ok {
		if hr, ok := rv.IntoHTTPResponse(); ok {
			return &httpx.Response{Status: hr.Status, Headers: hr.Headers, Body: hr.Body}
		}
	}

	status := 200
	if sv, ok := scope.Get("responseStatus"); ok {
		if i, ok := sv.IntoInt(); ok {
			status = int(i)
		}
	}

	headers := make(map[string][]string)
	if cfg.ResponseHeaders != nil {
		for _, k := range cfg.ResponseHeaders.Keys() {
			v, _ := cfg.ResponseHeaders.Get(k)
			headers[k] = []string{value.Stringify(v)}
		}
	}
	if hv, ok := scope.Get("responseHeaders"); ok {
		if om, ok := hv.IntoMap(); ok {
			for _, k := range om.Keys() {
				v, _ := om.Get(k)
				headers[k] = []string{value.Stringify(v)}
			}
		}
	}

	var body []byte
	if bv, ok := scope.Get("response"); ok && !bv.IsNull() {
		switch bv.Kind() {
		case value.KindXML:
			xn, _ := bv.IntoXML()
			body = []byte(xn.Serialize())
			if _, has := headers["Content-Type"]; !has {
				headers["Content-Type"] = []string{"application/xml"}
			}
		case value.KindString:
			s, _ := bv.IntoString()
			body = []byte(s)
		default:
			body = []byte(value.CanonicalJSON(bv))
			if _, has := headers["Content-Type"]; !has {
				headers["Content-Type"] = []string{"application/json"}
			}
		}
	}

	if r.Config.CORS {
		headers["Access-Control-Allow-Origin"] = []string{"*"}
	}

	return &httpx.Response{Status: status, Headers: headers, Body: body}
}

func bindRequestVars(scope *model.Scope, req *httpx.IncomingRequest) {
	scope.Put("requestMethod", value.NewString(req.Method))
	scope.Put("requestPath", value.NewString(req.Path))

	headerMap := value.NewOrderedMap()
	for k, vs := range req.Headers {
		l := make([]value.Value, len(vs))
		for i, v := range vs {
			l[i] = value.NewString(v)
		}
		headerMap.Set(k, value.NewList(l))
	}
	scope.Put("requestHeaders", value.NewMap(headerMap))

	paramMap := value.NewOrderedMap()
	for k, vs := range req.Query {
		l := make([]value.Value, len(vs))
		for i, v := range vs {
			l[i] = value.NewString(v)
		}
		paramMap.Set(k, value.NewList(l))
	}
	scope.Put("requestParams", value.NewMap(paramMap))

	scope.Put("requestBytes", value.NewBytes(req.Body))
	body := strings.TrimSpace(string(req.Body))
	switch {
	case strings.HasPrefix(body, "{") || strings.HasPrefix(body, "["):
		if v, err := jsonval.Parse(body); err == nil {
			scope.Put("request", v)
			break
		}
		scope.Put("request", value.NewString(body))
	case strings.HasPrefix(body, "<"):
		if node, err := xmlval.Parse(body); err == nil {
			scope.Put("request", value.NewXML(node))
			break
		}
		scope.Put("request", value.NewString(body))
	default:
		scope.Put("request", value.NewString(body))
	}
}

// registerMockHelpers exposes the matcher helper functions mock
// scenarios use as scenario predicates and step expressions.
func registerMockHelpers(exec *step.Executor, req *httpx.IncomingRequest, pathParams map[string]value.Value) {
	exec.Engine.RegisterFunc("pathMatches", func(pattern string) bool {
		return matchPathPattern(pattern, req.Path, pathParams)
	})
	exec.Engine.RegisterFunc("proceed", func(targetURL string) value.Value {
		resp, err := proceedTo(exec, req, targetURL)
		if err != nil {
			exec.Log.Warn("mock: proceed failed", map[string]any{"url": targetURL, "error": err.Error()})
			return value.NewHTTPResponse(&value.HTTPResponse{Status: 502, Body: []byte(err.Error())})
		}
		return value.NewHTTPResponse(resp)
	})
	exec.Engine.RegisterFunc("methodIs", func(method string) bool {
		return strings.EqualFold(method, req.Method)
	})
	exec.Engine.RegisterFunc("paramExists", func(name string) bool {
		_, ok := req.Query[name]
		return ok
	})
	exec.Engine.RegisterFunc("paramValue", func(name string) string {
		if vs, ok := req.Query[name]; ok && len(vs) > 0 {
			return vs[0]
		}
		return ""
	})
	exec.Engine.RegisterFunc("headerValue", func(name string) string {
		if vs, ok := req.Headers[name]; ok && len(vs) > 0 {
			return vs[0]
		}
		return ""
	})
}

// proceedTo forwards the original incoming request to targetURL and
// returns the backend's response, for the karate.proceed() pass-through
// case: a mock can delegate to a real upstream instead of synthesizing
// a response.
func proceedTo(exec *step.Executor, req *httpx.IncomingRequest, targetURL string) (*value.HTTPResponse, error) {
	if exec.Client == nil {
		return nil, fmt.Errorf("mock: proceed: no HTTP client configured")
	}
	headers := make(map[string][]string, len(req.Headers))
	for k, vs := range req.Headers {
		headers[k] = append([]string(nil), vs...)
	}
	out := &httpx.Request{
		Method:  req.Method,
		URL:     httpx.JoinPath(targetURL, req.Path),
		Headers: headers,
		Body:    req.Body,
	}
	resp, _, err := exec.Client.Do(context.Background(), out)
	return resp, err
}

var reSegmentParam = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// matchPathPattern matches a Karate-style `/cats/{id}` pattern against
// the actual path, populating captured segments into pathParams and
// returning whether every literal segment matched.
func matchPathPattern(pattern, actual string, pathParams map[string]value.Value) bool {
	pParts := strings.Split(strings.Trim(pattern, "/"), "/")
	aParts := strings.Split(strings.Trim(actual, "/"), "/")
	if len(pParts) != len(aParts) {
		return false
	}
	captured := map[string]value.Value{}
	for i, p := range pParts {
		if m := reSegmentParam.FindStringSubmatch(p); m != nil {
			captured[m[1]] = value.NewString(aParts[i])
			continue
		}
		if p != aParts[i] {
			return false
		}
	}
	for k, v := range captured {
		pathParams[k] = v
	}
	return true
}
