package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-art-session/internal/apiclient"
	"go-art-session/internal/authapi"
	"go-art-session/internal/authapi/authapitest"
	"go-art-session/internal/config"
	"go-art-session/internal/credential"
	"go-art-session/internal/event"
	"go-art-session/internal/handler"
	"go-art-session/internal/middleware"
	"go-art-session/internal/model"
	"go-art-session/internal/session"
	"go-art-session/internal/websocket"
)

var admin = model.UserProfile{
	ID:        "admin-1",
	Email:     "curator@example.com",
	FirstName: "Hans",
	LastName:  "Obrist",
	Role:      model.RoleAdmin,
	CreatedAt: "2023-11-02T08:30:00Z",
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:    5 * time.Second,
		EventsHeartbeat:   50 * time.Millisecond,
		EventsMaxDuration: 5 * time.Second,
		ProxyMaxBodyBytes: 1 << 16,
		CORSOrigins:       []string{"*"},
		RateLimitRPM:      0,
		AuthRateLimitRPM:  1000,
	}
}

func newServer(t *testing.T, health func(context.Context) error) (*httptest.Server, *authapitest.Server) {
	t.Helper()

	backend := authapitest.NewServer(t)
	backend.AddUser(admin, "pw")

	cfg := testConfig()
	registry := prometheus.NewRegistry()
	store := credential.NewStore(credential.NewMemoryBackend(), nil)
	bus := event.NewBus(nil)
	coord := session.New(context.Background(), store, authapi.New(backend.BaseURL(), nil), bus, session.Options{
		Metrics: session.NewMetrics(registry),
	})
	t.Cleanup(coord.Close)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	t.Cleanup(hubCancel)
	hub := websocket.NewHub(bus, coord, cfg.CORSOrigins, nil)
	go hub.Run(hubCtx)

	h := New(
		cfg,
		registry,
		health,
		middleware.NewAuthMiddleware(coord),
		handler.NewSessionHandler(coord),
		handler.NewEventsHandler(bus, coord, cfg.EventsHeartbeat, nil),
		hub,
		handler.NewGuardHandler(coord),
		handler.NewLocalHandler(store),
		handler.NewProxyHandler(apiclient.New(backend.BaseURL(), coord, time.Second, nil), cfg.ProxyMaxBodyBytes),
	)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, backend
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, nil)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/health").StatusCode)

	down, _ := newServer(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down.URL+"/health").StatusCode)
}

func TestTokenRouteRequiresSession(t *testing.T) {
	srv, _ := newServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, get(t, srv.URL+"/session/token").StatusCode)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/session/login", model.LoginRequest{Email: admin.Email, Password: "pw"}).StatusCode)

	resp := get(t, srv.URL+"/session/token")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestSessionRootAndProxyRoutes(t *testing.T) {
	srv, _ := newServer(t, nil)

	resp := get(t, srv.URL+"/session")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/session/login", model.LoginRequest{Email: admin.Email, Password: "pw"}).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/api/artworks").StatusCode)
}

func TestMetricsExposeTransitions(t *testing.T) {
	srv, _ := newServer(t, nil)
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/session/login", model.LoginRequest{Email: admin.Email, Password: "pw"}).StatusCode)

	resp := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body strings.Builder
	_, err := bufio.NewReader(resp.Body).WriteTo(&body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `art_session_transitions_total{state="authenticated"} 1`)
}

func TestEventStream(t *testing.T) {
	srv, _ := newServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/session/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	next := func(prefix string) string {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed")
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("no %q line within deadline", prefix)
			}
		}
	}

	assert.Equal(t, "event: session.snapshot", next("event: "))
	next(": ping")

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/session/login", model.LoginRequest{Email: admin.Email, Password: "pw"}).StatusCode)
	assert.Equal(t, "event: session.loading", next("event: "))
	assert.Equal(t, "event: session.authenticated", next("event: "))

	data := strings.TrimPrefix(next("data: "), "data: ")
	var e event.Event
	require.NoError(t, json.Unmarshal([]byte(data), &e))
	assert.Equal(t, event.TypeSessionAuthenticated, e.Type)
}
