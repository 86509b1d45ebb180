// Package rest gates outgoing REST calls behind Discord's per-bucket rate
// limits. The HTTP layer itself is a narrow Transport contract so tests and
// alternative clients can slot in without touching the limiter.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Request is one REST call. Route must be the rate-limit route (the path
// with major parameters kept and minor ids collapsed), not the raw URL.
type Request struct {
	Method string
	Route  string
	Body   []byte
}

// Metadata is the rate-limit state a response carries.
type Metadata struct {
	// Bucket is Discord's opaque bucket id shared by all routes that drain
	// the same quota. Empty when the endpoint is unbucketed.
	Bucket     string
	Remaining  int
	ResetAfter time.Duration
	Global     bool
}

type Response struct {
	StatusCode int
	Body       []byte
	Metadata   Metadata
}

// Transport issues a single HTTP exchange. Implementations report transport
// failures through the error; non-2xx statuses come back as a Response.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPError is a non-2xx REST response, propagated to the invoking handler.
type HTTPError struct {
	StatusCode int
	Route      string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rest: %s returned %d", e.Route, e.StatusCode)
}

// HTTPTransport is the production Transport on top of net/http. BaseURL is
// prepended to the request route.
type HTTPTransport struct {
	BaseURL    string
	BotToken   string
	HTTPClient *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.BaseURL+req.Route, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bot "+t.BotToken)
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
		Metadata:   metadataFromHeader(httpResp.Header),
	}, nil
}

func metadataFromHeader(header http.Header) Metadata {
	meta := Metadata{
		Bucket: header.Get("X-RateLimit-Bucket"),
		Global: header.Get("X-RateLimit-Global") == "true",
	}
	if remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining")); err == nil {
		meta.Remaining = remaining
	}
	if resetAfter, err := strconv.ParseFloat(header.Get("X-RateLimit-Reset-After"), 64); err == nil {
		meta.ResetAfter = time.Duration(resetAfter * float64(time.Second))
	}
	return meta
}
