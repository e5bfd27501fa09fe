// Package session keeps the in-memory session and the persisted credentials
// consistent with each other and with the backend.
package session

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go-art-session/internal/credential"
	"go-art-session/internal/event"
	"go-art-session/internal/model"
	"go-art-session/pkg/apierror"
)

const (
	reasonNoToken        = "No token found"
	reasonRefreshFailed  = "Token refresh failed - please login again"
	reasonInvalidToken   = "Invalid or expired token"
	reasonInvalidPayload = "Invalid authentication payload"
	reasonInconsistent   = "Authentication error. Please log in again."
	reasonStorage        = "Failed to save authentication state"

	noticeSessionExpired = "Session expired. Please login again."
)

// AuthAPI is the backend's authentication surface.
type AuthAPI interface {
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error)
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (model.RefreshResult, error)
	Verify(ctx context.Context, accessToken string) (model.UserProfile, error)
	Logout(ctx context.Context, accessToken string) error
}

type Options struct {
	ExpiryBuffer    time.Duration
	RefreshInterval time.Duration
	RefreshWindow   time.Duration
	CallTimeout     time.Duration
	VerifyRetries   int
	Now             func() time.Time
	Logger          *slog.Logger
	Metrics         *Metrics
}

func (o Options) withDefaults() Options {
	if o.ExpiryBuffer <= 0 {
		o.ExpiryBuffer = credential.DefaultExpiryBuffer
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = time.Minute
	}
	if o.RefreshWindow <= 0 {
		o.RefreshWindow = 5 * time.Minute
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.VerifyRetries < 0 {
		o.VerifyRetries = 0
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Coordinator is the single writer of the credential store's auth keys.
type Coordinator struct {
	store   *credential.Store
	api     AuthAPI
	bus     event.Bus
	inspect credential.Inspector
	opts    Options
	logger  *slog.Logger
	metrics *Metrics

	mu        sync.Mutex
	session   model.Session
	epoch     uint64 // bumped whenever credentials are replaced or wiped
	stopTimer context.CancelFunc
	notice    string // shown once, then cleared by TakeNotice
	closed    bool

	refreshes singleflight.Group
	bgCtx     context.Context
	bgCancel  context.CancelFunc
	wg        sync.WaitGroup
}

// New derives the initial session from whatever the store already holds.
func New(ctx context.Context, store *credential.Store, api AuthAPI, bus event.Bus, opts Options) *Coordinator {
	opts = opts.withDefaults()
	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))

	c := &Coordinator{
		store:    store,
		api:      api,
		bus:      bus,
		inspect:  credential.Inspector{Buffer: opts.ExpiryBuffer, Now: opts.Now},
		opts:     opts,
		logger:   opts.Logger.With("component", "session"),
		metrics:  opts.Metrics,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}

	token := store.GetToken(ctx)
	profile := store.GetUserProfile(ctx)
	switch {
	case c.fastPath(token, profile):
		c.session = model.AuthenticatedSession(*profile, token)
	case token != "":
		c.session = loadingSession()
	default:
		c.session = model.AnonymousSession()
	}

	c.logger.Info("session initialised", "state", c.session.State)
	return c
}

// Session returns a snapshot of the current session.
func (c *Coordinator) Session() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// TakeNotice returns the pending user-facing notice and clears it.
func (c *Coordinator) TakeNotice() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	notice := c.notice
	c.notice = ""
	return notice
}

func (c *Coordinator) Inspector() credential.Inspector {
	return c.inspect
}

// Close stops the refresh timer and waits for background work to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()

	c.bgCancel()
	c.wg.Wait()
}

// fastPath reports whether the stored credentials already describe an
// authenticated session without any network call.
func (c *Coordinator) fastPath(token string, profile *model.UserProfile) bool {
	if token == "" || profile == nil || !c.inspect.Valid(token) {
		return false
	}
	claims, err := credential.Decode(token)
	if err != nil {
		return false
	}
	return claims.Subject == profile.ID
}

func (c *Coordinator) transitionLocked(next model.Session, notice string) {
	c.setLocked(next, eventTypeFor(next.State), notice)
	c.metrics.transition(string(next.State))
}

func (c *Coordinator) setLocked(next model.Session, kind event.Type, notice string) {
	prev := c.session.State
	c.session = next
	if notice != "" {
		c.notice = notice
	}

	if prev != next.State {
		c.logger.Info("session transition", "from", prev, "to", next.State, "error", next.Error)
	}
	if c.bus != nil {
		c.bus.Publish(event.New(kind, next.Clone(), notice))
	}
}

// failLocked wipes credentials and moves to the failed state. The wipe runs
// even when ctx is already cancelled.
func (c *Coordinator) failLocked(ctx context.Context, reason string, notice string) {
	c.epoch++
	c.stopTimerLocked()
	c.store.ClearAll(context.WithoutCancel(ctx))
	c.transitionLocked(model.FailedSession(reason), notice)
}

// callContext detaches a backend call from its caller so a shared refresh is
// not cut short by whichever caller started it. Close still cancels it.
func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.CallTimeout)
	stop := context.AfterFunc(c.bgCtx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func loadingSession() model.Session {
	return model.Session{State: model.StateLoading, Loading: true}
}

func sameSession(a, b model.Session) bool {
	return a.State == b.State &&
		a.Token == b.Token &&
		a.IsAuthenticated == b.IsAuthenticated &&
		a.Error == b.Error &&
		reflect.DeepEqual(a.User, b.User)
}

func eventTypeFor(state model.State) event.Type {
	switch state {
	case model.StateAuthenticated:
		return event.TypeSessionAuthenticated
	case model.StateLoading:
		return event.TypeSessionLoading
	case model.StateFailed:
		return event.TypeSessionFailed
	default:
		return event.TypeSessionAnonymous
	}
}

func messageOf(err error, fallback string) string {
	if apiErr, ok := apierror.As(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
