package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go-art-session/internal/credential"
	"go-art-session/internal/event"
	"go-art-session/internal/model"
	"go-art-session/pkg/apierror"
)

const (
	refreshKey         = "refresh"
	eventTypeRefreshed = event.TypeTokenRefreshed
	verifyInitialDelay = 500 * time.Millisecond
	verifyMaxElapsed   = 30 * time.Second
)

// Refresh exchanges the stored refresh token for a new access token. All
// concurrent callers share one backend call and one result. A caller that
// gives up waiting does not cancel the shared refresh.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		return c.refreshOnce(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) refreshOnce(ctx context.Context) (string, error) {
	c.mu.Lock()
	epoch := c.epoch
	refreshToken := c.store.GetRefreshToken(ctx)
	if refreshToken == "" || c.refreshTokenExpired(refreshToken) {
		c.failLocked(ctx, reasonRefreshFailed, noticeSessionExpired)
		c.mu.Unlock()
		c.metrics.refresh("no_refresh_token")
		return "", model.ErrNoRefreshToken
	}
	c.mu.Unlock()

	callCtx, cancel := c.callContext(ctx)
	result, err := c.api.Refresh(callCtx, refreshToken)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.metrics.refresh("superseded")
		c.logger.Info("discarding refresh result for superseded session")
		return "", model.ErrSessionSuperseded
	}

	if err != nil {
		c.metrics.refresh("failed")
		c.logger.Warn("token refresh failed", "error", err)
		c.failLocked(ctx, reasonRefreshFailed, noticeSessionExpired)
		if errors.Is(err, model.ErrRefreshFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", model.ErrRefreshFailed, err)
	}

	validation := c.inspect.Validate(result.AccessToken)
	if !validation.Valid {
		c.metrics.refresh("invalid_token")
		reason := strings.Join(validation.Errors, ", ")
		c.failLocked(ctx, reason, noticeSessionExpired)
		return "", fmt.Errorf("%w: %s", model.ErrRefreshFailed, reason)
	}

	if err := c.store.SetTokens(ctx, result.AccessToken, result.RefreshToken); err != nil {
		c.metrics.refresh("storage_error")
		c.failLocked(ctx, reasonStorage, "")
		return "", err
	}

	if c.session.IsAuthenticated {
		next := c.session.Clone()
		next.Token = result.AccessToken
		c.setLocked(next, eventTypeRefreshed, "")
	}

	c.metrics.refresh("success")
	c.logger.Info("access token refreshed", "rotated_refresh_token", result.RefreshToken != "")
	return result.AccessToken, nil
}

// refreshTokenExpired only judges refresh tokens it can decode; opaque ones
// are left for the backend to accept or reject.
func (c *Coordinator) refreshTokenExpired(token string) bool {
	claims, err := credential.Decode(token)
	if err != nil || !claims.HasExpiry() {
		return false
	}
	return credential.IsExpiredAt(token, 0, c.opts.Now())
}

// EnsureValidToken returns a usable access token, refreshing first when the
// stored one is expired. It returns model.ErrNoToken when nobody is logged in.
func (c *Coordinator) EnsureValidToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.store.GetToken(ctx)
	c.mu.Unlock()

	if token == "" {
		return "", model.ErrNoToken
	}
	if c.inspect.Valid(token) {
		return token, nil
	}
	return c.Refresh(ctx)
}

// HandleUnauthorized is called when the backend rejected a bearer token.
func (c *Coordinator) HandleUnauthorized(ctx context.Context) (string, error) {
	return c.Refresh(ctx)
}

// Tick refreshes the access token when it is about to leave the refresh window.
func (c *Coordinator) Tick(ctx context.Context) {
	c.mu.Lock()
	if !c.session.IsAuthenticated {
		c.mu.Unlock()
		return
	}
	token := c.session.Token
	c.mu.Unlock()

	remaining, ok := c.inspect.Remaining(token)
	if !ok || remaining <= 0 || remaining >= c.opts.RefreshWindow {
		return
	}

	c.logger.Debug("access token close to expiry", "remaining", remaining.Round(time.Second))
	if _, err := c.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("scheduled refresh failed", "error", err)
	}
}

func (c *Coordinator) startTimerLocked() {
	if c.stopTimer != nil || c.closed {
		return
	}

	ctx, cancel := context.WithCancel(c.bgCtx)
	c.stopTimer = cancel

	c.wg.Add(1)
	go c.runTimer(ctx)
}

func (c *Coordinator) stopTimerLocked() {
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

func (c *Coordinator) runTimer(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// verifyAsyncLocked asks the backend for the authoritative profile without
// blocking the caller. A differing profile replaces the cached one, even when
// its id differs; the session stays authenticated.
func (c *Coordinator) verifyAsyncLocked(token string, cached model.UserProfile) {
	if c.closed {
		return
	}
	epoch := c.epoch

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		verified, err := c.verifyWithRetry(token)
		if err != nil {
			c.metrics.verify("error")
			c.logger.Warn("profile verification failed", "error", err)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.epoch != epoch || !c.session.IsAuthenticated {
			c.metrics.verify("superseded")
			return
		}
		if reflect.DeepEqual(verified, cached) {
			c.metrics.verify("unchanged")
			return
		}

		outcome := "updated"
		if verified.ID != cached.ID {
			outcome = "mismatch"
			c.logger.Warn("overwriting cached profile with backend profile",
				"error", model.ErrBackendMismatch,
				"cached_id", cached.ID,
				"verified_id", verified.ID,
			)
		}

		if err := c.store.SetUserProfile(c.bgCtx, verified); err != nil {
			c.metrics.verify("error")
			c.logger.Warn("could not cache verified profile", "error", err)
			return
		}
		next := c.session.Clone()
		next.User = &verified
		c.transitionLocked(next, "")
		c.metrics.verify(outcome)
	}()
}

func (c *Coordinator) verifyWithRetry(token string) (model.UserProfile, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = verifyInitialDelay
	policy.MaxElapsedTime = verifyMaxElapsed

	var profile model.UserProfile
	operation := func() error {
		callCtx, cancel := context.WithTimeout(c.bgCtx, c.opts.CallTimeout)
		defer cancel()

		var err error
		profile, err = c.api.Verify(callCtx, token)
		if err == nil {
			return nil
		}
		if apiErr, ok := apierror.As(err); ok && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.VerifyRetries)), c.bgCtx)
	if err := backoff.Retry(operation, b); err != nil {
		return model.UserProfile{}, err
	}
	return profile, nil
}
