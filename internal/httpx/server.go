package httpx

import (
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"
)

// IncomingRequest is the transport-agnostic view of a request arriving
// at the mock server, handed to the Mock Request Router.
type IncomingRequest struct {
	Method     string
	Path       string
	Query      map[string][]string
	Headers    map[string][]string
	Body       []byte
	RemoteAddr string
}

// Response is what a Handler returns to be written back to the wire.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// Handler processes one IncomingRequest and produces a Response. It is
// invoked synchronously per-connection by the fasthttp server loop; the
// Mock Request Router supplies the concrete implementation.
type Handler func(*IncomingRequest) *Response

// Server is a minimal fasthttp-backed HTTP server: one Handler, no
// routing of its own (the handler is the router).
type Server struct {
	Addr    string
	Handler Handler

	inner *fasthttp.Server
}

func NewServer(addr string, handler Handler) *Server {
	s := &Server{Addr: addr, Handler: handler}
	s.inner = &fasthttp.Server{
		Handler: s.serve,
	}
	return s
}

// ListenAndServe blocks until the listener is closed by Shutdown.
func (s *Server) ListenAndServe() error {
	return s.inner.ListenAndServe(s.Addr)
}

func (s *Server) Shutdown() error {
	return s.inner.Shutdown()
}

func (s *Server) serve(ctx *fasthttp.RequestCtx) {
	req := &IncomingRequest{
		Method:     string(ctx.Method()),
		Path:       string(ctx.Path()),
		Query:      make(map[string][]string),
		Headers:    make(map[string][]string),
		RemoteAddr: ctx.RemoteAddr().String(),
	}
	body := ctx.PostBody()
	req.Body = append(req.Body[:0:0], body...)

	ctx.QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		req.Query[key] = append(req.Query[key], string(v))
	})
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		req.Headers[key] = append(req.Headers[key], string(v))
	})

	resp := s.Handler(req)
	if resp == nil {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	for name, vals := range resp.Headers {
		for _, v := range vals {
			ctx.Response.Header.Add(name, v)
		}
	}
	ctx.SetStatusCode(resp.Status)
	ctx.SetBody(resp.Body)
}

// ParsePathAndQuery splits a raw request-target into its path and
// decoded query parameters, used when a mock scenario constructs its
// own redirect/proceed target.
func ParsePathAndQuery(raw string) (path string, query map[string][]string) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, nil
	}
	query = make(map[string][]string)
	for k, vs := range u.Query() {
		query[k] = vs
	}
	return u.Path, query
}

// JoinPath concatenates a base URL and a relative path the way
// `path`/`url` steps do, collapsing duplicate slashes.
func JoinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	b := strings.TrimRight(base, "/")
	r := strings.TrimLeft(rel, "/")
	return b + "/" + r
}
