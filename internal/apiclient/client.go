// Package apiclient sends marketplace requests on behalf of the current session.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"go-art-session/internal/logger"
	"go-art-session/internal/model"
)

// TokenSource supplies bearer tokens and reacts to their rejection.
type TokenSource interface {
	CheckConsistency(ctx context.Context) bool
	EnsureValidToken(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context) (string, error)
}

// Request is a marketplace call relative to the backend base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type Client struct {
	rest   *resty.Client
	tokens TokenSource
	logger *slog.Logger
}

// forwardedHeaders are copied from the incoming request to the backend.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Content-Type", "X-Request-ID"}

func New(baseURL string, tokens TokenSource, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	rest := resty.New().SetBaseURL(strings.TrimRight(baseURL, "/"))
	if timeout > 0 {
		rest.SetTimeout(timeout)
	}
	rest.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if id := logger.RequestID(req.Context()); id != "" && req.Header.Get("X-Request-ID") == "" {
			req.SetHeader("X-Request-ID", id)
		}
		return nil
	})

	return &Client{rest: rest, tokens: tokens, logger: log.With("component", "api_client")}
}

// Do sends req with the session's bearer token. A 401 triggers one shared
// refresh and a single retry with the new token.
func (c *Client) Do(ctx context.Context, req Request) (*resty.Response, error) {
	c.tokens.CheckConsistency(ctx)

	token, err := c.tokens.EnsureValidToken(ctx)
	if err != nil && !errors.Is(err, model.ErrNoToken) {
		return nil, fmt.Errorf("%w: %w", model.ErrUnauthorized, err)
	}

	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusUnauthorized || token == "" {
		return resp, nil
	}

	c.logger.InfoContext(ctx, "backend rejected bearer token, refreshing", "path", req.Path)
	retryToken, err := c.tokens.HandleUnauthorized(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "refresh after 401 failed", "error", err)
		return resp, nil
	}

	return c.send(ctx, req, retryToken)
}

func (c *Client) send(ctx context.Context, req Request, token string) (*resty.Response, error) {
	r := c.rest.R().SetContext(ctx)

	for _, name := range forwardedHeaders {
		if v := req.Header.Get(name); v != "" {
			r.SetHeader(name, v)
		}
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}
	if token != "" {
		r.SetAuthToken(token)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := r.Execute(method, "/"+strings.TrimLeft(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("call %s %s: %w", method, req.Path, err)
	}
	return resp, nil
}
