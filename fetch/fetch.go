// Package fetch is the HTTP boundary for http nodes and built-in actions.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout applies when a request does not carry its own.
const DefaultTimeout = 30 * time.Second

// Request is a single outgoing HTTP call.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// Response is the reduced response the engine consumes.
type Response struct {
	StatusCode int
	Body       string
}

// Fetcher performs HTTP requests on behalf of the engine. Implementations
// must honor the per-request timeout and the context.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// HTTP is the default Fetcher backed by net/http.
type HTTP struct {
	Client *http.Client
}

var _ Fetcher = (*HTTP)(nil)

// NewHTTP returns a Fetcher with a shared client.
func NewHTTP() *HTTP {
	return &HTTP{Client: &http.Client{}}
}

// Fetch implements Fetcher.
func (f *HTTP) Fetch(ctx context.Context, req Request) (Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: bad request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: %s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("fetch: reading %s: %w", req.URL, err)
	}
	return Response{StatusCode: resp.StatusCode, Body: string(data)}, nil
}

// Mock is a scripted Fetcher for tests. Responses are keyed by URL; unknown
// URLs return Err.
type Mock struct {
	Responses map[string]Response
	Err       error
	Requests  []Request
}

var _ Fetcher = (*Mock)(nil)

// Fetch implements Fetcher.
func (f *Mock) Fetch(_ context.Context, req Request) (Response, error) {
	f.Requests = append(f.Requests, req)
	if resp, ok := f.Responses[req.URL]; ok {
		return resp, nil
	}
	if f.Err != nil {
		return Response{}, f.Err
	}
	return Response{}, fmt.Errorf("fetch: no mock response for %s", req.URL)
}
