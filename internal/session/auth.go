package session

import (
	"context"
	"strings"

	"go-art-session/internal/guard"
	"go-art-session/internal/model"
)

// LoginResult is what the UI needs after a successful login or registration.
type LoginResult struct {
	User        model.UserProfile `json:"user"`
	RedirectURL string            `json:"redirectUrl"`
	Message     string            `json:"message,omitempty"`
}

func (c *Coordinator) Login(ctx context.Context, req model.LoginRequest) (LoginResult, error) {
	c.beginAuth()

	callCtx, cancel := c.callContext(ctx)
	resp, err := c.api.Login(callCtx, req)
	cancel()
	if err != nil {
		c.fail(ctx, messageOf(err, "Login failed"), "")
		return LoginResult{}, err
	}

	return c.completeAuth(ctx, resp)
}

func (c *Coordinator) Register(ctx context.Context, req model.RegisterRequest) (LoginResult, error) {
	c.beginAuth()

	callCtx, cancel := c.callContext(ctx)
	resp, err := c.api.Register(callCtx, req)
	cancel()
	if err != nil {
		c.fail(ctx, messageOf(err, "Registration failed"), "")
		return LoginResult{}, err
	}

	return c.completeAuth(ctx, resp)
}

func (c *Coordinator) beginAuth() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transitionLocked(loadingSession(), "")
}

func (c *Coordinator) completeAuth(ctx context.Context, resp model.AuthResponse) (LoginResult, error) {
	redirect, err := c.Authenticate(ctx, resp.User, resp.Tokens.AccessToken, resp.Tokens.RefreshToken)
	if err != nil {
		return LoginResult{}, err
	}
	if resp.RedirectURL != "" {
		redirect = resp.RedirectURL
	}

	return LoginResult{User: *resp.User, RedirectURL: redirect, Message: resp.Message}, nil
}

// Authenticate replaces whatever credentials are stored with the given ones
// and returns the dashboard path for the user's role.
func (c *Coordinator) Authenticate(ctx context.Context, profile *model.UserProfile, accessToken string, refreshToken string) (string, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if profile == nil || strings.TrimSpace(profile.ID) == "" || !c.inspect.Valid(accessToken) {
		c.logger.Warn("rejecting authentication payload",
			"has_profile", profile != nil,
			"token_valid", c.inspect.Valid(accessToken),
		)
		c.failLocked(ctx, reasonInvalidPayload, "")
		return "", model.ErrAuthPayload
	}

	c.epoch++
	c.stopTimerLocked()
	c.store.ClearAll(ctx)
	c.notice = ""

	if err := c.store.SetTokens(ctx, accessToken, refreshToken); err != nil {
		c.failLocked(ctx, reasonStorage, "")
		return "", err
	}
	if err := c.store.SetUserProfile(ctx, *profile); err != nil {
		c.failLocked(ctx, reasonStorage, "")
		return "", err
	}

	c.transitionLocked(model.AuthenticatedSession(*profile, accessToken), "")
	c.startTimerLocked()

	c.logger.Info("user authenticated", "user_id", profile.ID, "role", profile.Role)
	return guard.DashboardPath(profile.Role), nil
}

// Logout resets local state first and then tells the backend, best effort.
func (c *Coordinator) Logout(ctx context.Context) {
	storeCtx := context.WithoutCancel(ctx)

	c.mu.Lock()
	token := c.session.Token
	if token == "" {
		token = c.store.GetToken(storeCtx)
	}

	c.epoch++
	c.stopTimerLocked()
	c.store.ClearAll(storeCtx)
	c.store.ClearAncillary(storeCtx)
	c.transitionLocked(model.AnonymousSession(), "")
	c.mu.Unlock()

	if token == "" {
		return
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	if err := c.api.Logout(callCtx, token); err != nil {
		c.logger.Warn("backend logout failed", "error", err)
	}
}

func (c *Coordinator) fail(ctx context.Context, reason string, notice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked(ctx, reason, notice)
}
