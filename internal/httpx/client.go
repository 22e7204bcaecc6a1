// Package httpx wraps github.com/valyala/fasthttp for both the outbound
// HTTP client steps use (`method`, `url`, ...) and the mock server
// transport: the actual request/response wire layer underneath both.
package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/blackcoderx/talon/internal/value"
	"github.com/valyala/fasthttp"
)

// Request is a fully-resolved outbound HTTP request.
type Request struct {
	Method  string
	URL     string
	Headers map[string][]string
	Cookies map[string]string
	Body    []byte
}

// Client issues requests with a configurable timeout and TLS/proxy
// settings inherited from the underlying fasthttp.Client.
type Client struct {
	inner   *fasthttp.Client
	Timeout time.Duration
}

func NewClient() *Client {
	return &Client{
		inner:   &fasthttp.Client{},
		Timeout: 30 * time.Second,
	}
}

// Do executes req and returns the response as the same HTTPResponse
// shape the mock router produces, so downstream steps (status, match
// response, ...) treat both uniformly.
func (c *Client) Do(ctx context.Context, req *Request) (*value.HTTPResponse, time.Duration, error) {
	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.SetRequestURI(req.URL)
	freq.Header.SetMethod(req.Method)
	for name, vals := range req.Headers {
		for _, v := range vals {
			freq.Header.Add(name, v)
		}
	}
	for name, v := range req.Cookies {
		freq.Header.SetCookie(name, v)
	}
	if len(req.Body) > 0 {
		freq.SetBody(req.Body)
	}

	timeout := c.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}

	start := time.Now()
	err := c.inner.DoTimeout(freq, fresp, timeout)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, fmt.Errorf("httpx: request %s %s: %w", req.Method, req.URL, err)
	}

	headers := make(map[string][]string)
	fresp.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		headers[key] = append(headers[key], string(v))
	})
	body := make([]byte, len(fresp.Body()))
	copy(body, fresp.Body())

	return &value.HTTPResponse{
		Status:  fresp.StatusCode(),
		Headers: headers,
		Body:    body,
	}, elapsed, nil
}
