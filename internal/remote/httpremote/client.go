// Package httpremote is a remote.Backend over the development remote's
// HTTP document API.
package httpremote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/moodtune/moodtune-sync/internal/remote"
)

// TokenFunc returns the bearer token for a request, or "" for none.
type TokenFunc func(ctx context.Context) string

// Client calls the document API.
type Client struct {
	http  *resty.Client
	token TokenFunc
}

var _ remote.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken attaches a bearer token to every request.
func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// New creates a client for the API at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type documentBody struct {
	Fields map[string]any `json:"fields"`
}

type batchBody struct {
	Ops []remote.SetOp `json:"ops"`
}

// errorBody accepts both the dev remote's coded errors and RFC 9457
// problem details.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx).SetError(&errorBody{})
	if c.token != nil {
		if tok := c.token(ctx); tok != "" {
			r.SetAuthToken(tok)
		}
	}
	return r
}

func documentPath(collection, id string) string {
	return "/v1/documents/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

// Get fetches one document.
func (c *Client) Get(ctx context.Context, collection, id string) (*remote.Document, error) {
	var doc remote.Document
	resp, err := c.request(ctx).SetResult(&doc).Get(documentPath(collection, id))
	if err != nil {
		return nil, classify("get", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, remote.NotFound(collection, id)
	}
	if err := statusError("get", resp); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Set writes one document.
func (c *Client) Set(ctx context.Context, collection, id string, fields map[string]any, opts remote.SetOptions) error {
	resp, err := c.request(ctx).
		SetQueryParam("merge", fmt.Sprint(opts.Merge)).
		SetBody(documentBody{Fields: fields}).
		Put(documentPath(collection, id))
	if err != nil {
		return classify("set", err)
	}
	return statusError("set", resp)
}

// BatchCommit posts every op in one request; the server applies them atomically.
func (c *Client) BatchCommit(ctx context.Context, ops []remote.SetOp) error {
	resp, err := c.request(ctx).SetBody(batchBody{Ops: ops}).Post("/v1/batch")
	if err != nil {
		return classify("batch", err)
	}
	return statusError("batch", resp)
}

// Health reports whether the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return classify("health", err)
	}
	return statusError("health", resp)
}

// classify treats every transport failure (refused, reset, timeout) as transient.
func classify(op string, err error) error {
	return remote.Transient(op, err)
}

// statusError maps throttling, timeouts and server errors to transient
// failures and every other non-2xx status to a permanent one.
func statusError(op string, resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("status %d: %s", code, errorMessage(resp))
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout, code >= 500:
		return remote.Transient(op, err)
	default:
		return remote.Permanent(op, err)
	}
}

func errorMessage(resp *resty.Response) string {
	if body, ok := resp.Error().(*errorBody); ok && body != nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Detail != "" {
			return body.Detail
		}
		if body.Title != "" {
			return body.Title
		}
	}
	return http.StatusText(resp.StatusCode())
}
