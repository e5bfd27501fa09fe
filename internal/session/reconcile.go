package session

import (
	"context"
	"fmt"

	"go-art-session/internal/credential"
	"go-art-session/internal/model"
)

// Reconcile brings the session in line with the stored credentials. With a
// valid token and a matching cached profile it touches no network.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	storeCtx := context.WithoutCancel(ctx)

	c.mu.Lock()
	token := c.store.GetToken(storeCtx)
	cached := c.store.GetUserProfile(storeCtx)

	if c.fastPath(token, cached) {
		next := model.AuthenticatedSession(*cached, token)
		if !sameSession(c.session, next) {
			c.transitionLocked(next, "")
		}
		c.startTimerLocked()
		c.mu.Unlock()
		return nil
	}

	if token == "" {
		c.failLocked(storeCtx, reasonNoToken, "")
		c.mu.Unlock()
		return model.ErrNoToken
	}

	if !c.session.IsAuthenticated && c.session.State != model.StateLoading {
		c.transitionLocked(loadingSession(), "")
	}
	epoch := c.epoch
	valid := c.inspect.Valid(token)
	c.mu.Unlock()

	if !valid {
		refreshed, err := c.Refresh(ctx)
		if err != nil {
			return err
		}
		token = refreshed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return model.ErrSessionSuperseded
	}

	claims, err := credential.Decode(token)
	if err != nil {
		c.failLocked(storeCtx, reasonInvalidToken, "")
		return err
	}

	// Re-read: a refresh may have run while the lock was released.
	cached = c.store.GetUserProfile(storeCtx)
	var profile model.UserProfile
	if cached != nil && cached.ID == claims.Subject {
		profile = *cached
	} else {
		provisional, ok := credential.ProfileFromClaims(claims, c.opts.Now())
		if !ok {
			c.failLocked(storeCtx, reasonInvalidToken, "")
			return fmt.Errorf("%w: token has no subject", model.ErrMalformedToken)
		}
		profile = provisional
		if err := c.store.SetUserProfile(storeCtx, profile); err != nil {
			c.failLocked(storeCtx, reasonStorage, "")
			return err
		}
	}

	next := model.AuthenticatedSession(profile, token)
	if !sameSession(c.session, next) {
		c.transitionLocked(next, "")
	}
	c.startTimerLocked()
	c.verifyAsyncLocked(token, profile)

	return nil
}

// CheckConsistency forces a logout when the session claims authentication
// that the stored credentials no longer back. It reports whether the session
// was consistent.
func (c *Coordinator) CheckConsistency(ctx context.Context) bool {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.IsAuthenticated {
		return true
	}

	stored := c.store.GetToken(ctx)
	profile := c.store.GetUserProfile(ctx)
	if stored == "" || profile == nil || c.session.User == nil || profile.ID != c.session.User.ID {
		c.logger.Warn("session and stored credentials disagree",
			"has_token", stored != "",
			"has_profile", profile != nil,
		)
		c.failLocked(ctx, reasonInconsistent, reasonInconsistent)
		return false
	}

	// Another writer sharing the backend may have rotated the token.
	if stored != c.session.Token && c.inspect.Valid(stored) {
		next := c.session.Clone()
		next.Token = stored
		c.setLocked(next, eventTypeRefreshed, "")
	}

	return true
}
