package authapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"go-art-session/internal/logger"
	"go-art-session/internal/model"
	"go-art-session/pkg/apierror"
)

const requestIDHeader = "X-Request-ID"

type Option func(*Client)

// Client talks to the marketplace backend's /auth endpoints.
type Client struct {
	rest   *resty.Client
	logger *slog.Logger
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.rest.SetTimeout(timeout)
		}
	}
}

func New(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		rest:   resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")),
		logger: logger.With("component", "auth_api"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.rest.
		SetHeader("Accept", "application/json").
		OnBeforeRequest(propagateRequestID).
		OnAfterResponse(c.logResponse).
		OnError(c.logError)

	return c
}

func (c *Client) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", req, "Login failed")
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", req, "Registration failed")
}

func (c *Client) authenticate(ctx context.Context, path string, body any, fallback string) (model.AuthResponse, error) {
	var out model.AuthResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return out, transportError(err)
	}
	if resp.IsError() {
		return out, responseError(resp, fallback)
	}

	var payload authPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return out, apierror.New("BAD_RESPONSE", fallback, err.Error(), http.StatusBadGateway)
	}
	if payload.Success != nil && !*payload.Success {
		return out, apierror.New("AUTH_REJECTED", messageOr(payload.Message, fallback), "", http.StatusUnauthorized)
	}

	// User and tokens are not checked here; the coordinator rejects an
	// incomplete payload itself.
	out = payload.AuthResponse
	out.Success = true
	return out, nil
}

// authPayload accepts bodies with or without a success flag. Only an explicit
// false is a rejection.
type authPayload struct {
	model.AuthResponse
	Success *bool `json:"success"`
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.RefreshResult, error) {
	var out model.BackendEnvelope[model.RefreshResult]
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(model.RefreshRequest{RefreshToken: refreshToken}).
		Post("/auth/refresh")
	if err != nil {
		return model.RefreshResult{}, fmt.Errorf("%w: %w", model.ErrRefreshFailed, transportError(err))
	}
	if resp.IsError() {
		return model.RefreshResult{}, fmt.Errorf("%w: %w", model.ErrRefreshFailed, responseError(resp, "Token refresh failed"))
	}

	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return model.RefreshResult{}, fmt.Errorf("%w: decode response: %v", model.ErrRefreshFailed, err)
	}
	if !out.Success || out.Data.AccessToken == "" {
		return model.RefreshResult{}, fmt.Errorf("%w: %s", model.ErrRefreshFailed, messageOr(out.Message, "backend rejected refresh"))
	}

	return out.Data, nil
}

// Verify fetches the server-side profile for the bearer of accessToken.
func (c *Client) Verify(ctx context.Context, accessToken string) (model.UserProfile, error) {
	var out model.BackendEnvelope[model.UserProfile]
	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Get("/auth/verify")
	if err != nil {
		return model.UserProfile{}, transportError(err)
	}
	if resp.IsError() {
		return model.UserProfile{}, responseError(resp, "Token verification failed")
	}

	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return model.UserProfile{}, apierror.New("BAD_RESPONSE", "Token verification failed", err.Error(), http.StatusBadGateway)
	}
	if !out.Success || out.Data.ID == "" {
		return model.UserProfile{}, apierror.New("VERIFY_REJECTED", messageOr(out.Message, "Token verification failed"), "", http.StatusUnauthorized)
	}

	return out.Data, nil
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req := c.rest.R().SetContext(ctx)
	if accessToken != "" {
		req.SetAuthToken(accessToken)
	}

	resp, err := req.Post("/auth/logout")
	if err != nil {
		return transportError(err)
	}
	if resp.IsError() {
		return responseError(resp, "Logout failed")
	}
	return nil
}

func propagateRequestID(_ *resty.Client, req *resty.Request) error {
	if id := logger.RequestID(req.Context()); id != "" {
		req.SetHeader(requestIDHeader, id)
	}
	return nil
}

func (c *Client) logResponse(_ *resty.Client, resp *resty.Response) error {
	attrs := []any{
		"method", resp.Request.Method,
		"path", requestPath(resp.Request),
		"status", resp.StatusCode(),
		"duration_ms", resp.Time().Milliseconds(),
	}

	ctx := resp.Request.Context()
	if resp.StatusCode() >= http.StatusInternalServerError {
		c.logger.ErrorContext(ctx, "backend call completed with internal error", attrs...)
	} else {
		c.logger.DebugContext(ctx, "backend call completed", attrs...)
	}
	return nil
}

func (c *Client) logError(req *resty.Request, err error) {
	c.logger.WarnContext(req.Context(), "backend call failed",
		"method", req.Method,
		"path", requestPath(req),
		"error", err,
	)
}

func requestPath(req *resty.Request) string {
	if req.RawRequest != nil && req.RawRequest.URL != nil {
		return req.RawRequest.URL.Path
	}
	return req.URL
}

// backendError covers both the {message} and {error:{message}} shapes.
type backendError struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

func responseError(resp *resty.Response, fallback string) *apierror.APIError {
	message := fallback

	var body backendError
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		switch {
		case body.Message != "":
			message = body.Message
		case len(body.Error) > 0:
			var nested struct {
				Message string `json:"message"`
			}
			var flat string
			if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
				message = nested.Message
			} else if json.Unmarshal(body.Error, &flat) == nil && flat != "" {
				message = flat
			}
		}
	}

	return apierror.New(codeForStatus(resp.StatusCode()), message, "", resp.StatusCode())
}

func transportError(err error) *apierror.APIError {
	return apierror.New("BACKEND_UNAVAILABLE", "Authentication service unavailable", err.Error(), 0)
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case status == http.StatusForbidden:
		return "FORBIDDEN"
	case status == http.StatusConflict:
		return "CONFLICT"
	case status == http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case status >= http.StatusInternalServerError:
		return "BACKEND_ERROR"
	default:
		return "BAD_REQUEST"
	}
}

func messageOr(message string, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
