package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-art-session/internal/model"
)

type loginLog struct {
	mu       sync.Mutex
	requests []model.LoginRequest
}

func (l *loginLog) all() []model.LoginRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.LoginRequest(nil), l.requests...)
}

func fakeDaemon(t *testing.T) (*httptest.Server, *loginLog) {
	t.Helper()

	logins := &loginLog{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(model.APIResponse{
			Success: true,
			Data:    map[string]any{"state": "failed", "isAuthenticated": false},
			Notice:  "Session expired. Please login again.",
		})
	})
	mux.HandleFunc("POST /session/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		logins.mu.Lock()
		logins.requests = append(logins.requests, req)
		logins.mu.Unlock()
		_ = json.NewEncoder(w).Encode(model.APIResponse{Success: true, Data: map[string]any{"redirectUrl": "/dashboard/customer"}})
	})
	mux.HandleFunc("GET /session/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(model.APIResponse{Error: &model.APIError{Code: "UNAUTHORIZED", Message: "authentication required"}})
	})
	mux.HandleFunc("GET /guard", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.APIResponse{Success: true, Data: map[string]any{"roles": r.URL.Query().Get("roles")}})
	})
	mux.HandleFunc("GET /session/events", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "id: 1\nevent: session.snapshot\ndata: {\"type\":\"session.snapshot\"}\n\n")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, "id: 2\nevent: session.anonymous\ndata: {\"type\":\"session.anonymous\"}\n\n")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, logins
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetArgs(append([]string{"--addr", srv.URL, "--timeout", "5s"}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestStatusPrintsNoticeAndSession(t *testing.T) {
	srv, _ := fakeDaemon(t)

	out, err := run(t, srv, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "notice: Session expired. Please login again.")
	assert.Contains(t, out, `"state": "failed"`)
}

func TestLoginSendsCredentials(t *testing.T) {
	srv, logins := fakeDaemon(t)
	t.Setenv("SESSIONCTL_PASSWORD", "from-env")

	out, err := run(t, srv, "login", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "/dashboard/customer")
	assert.Equal(t, []model.LoginRequest{{Email: "ada@example.com", Password: "from-env"}}, logins.all())
}

func TestLoginRequiresEmail(t *testing.T) {
	srv, logins := fakeDaemon(t)

	_, err := run(t, srv, "login")
	assert.Error(t, err)
	assert.Empty(t, logins.all())
}

func TestErrorEnvelopeBecomesError(t *testing.T) {
	srv, _ := fakeDaemon(t)

	_, err := run(t, srv, "token")
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED: authentication required", err.Error())
}

func TestGuardJoinsRoles(t *testing.T) {
	srv, _ := fakeDaemon(t)

	out, err := run(t, srv, "guard", "--roles", "ADMIN", "--roles", "ARTIST")
	require.NoError(t, err)
	assert.Contains(t, out, `"roles": "ADMIN,ARTIST"`)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	srv, _ := fakeDaemon(t)

	_, err := run(t, srv, "register", "--email", "x@example.com", "--role", "curator")
	assert.EqualError(t, err, `unknown role "curator"`)
}

func TestWatchPrintsEventData(t *testing.T) {
	srv, _ := fakeDaemon(t)

	out, err := run(t, srv, "watch")
	require.NoError(t, err)
	assert.Equal(t, "{\"type\":\"session.snapshot\"}\n{\"type\":\"session.anonymous\"}\n", out)
}

func TestUnreachableDaemon(t *testing.T) {
	srv, _ := fakeDaemon(t)
	srv.Close()

	_, err := run(t, srv, "status")
	assert.ErrorContains(t, err, "sessiond unreachable")
}
