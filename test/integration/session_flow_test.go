//go:build integration

package integration

import (
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-art-session/internal/model"
)

func TestStartupWithoutToken(t *testing.T) {
	h := newHarness(t)
	server := h.start(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/session/reconcile", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s, _ := currentSession(t, server)
	assert.Equal(t, model.StateFailed, s.State)
	assert.Equal(t, "No token found", s.Error)
}

func TestSessionSurvivesRestartWithoutRefresh(t *testing.T) {
	h := newHarness(t)
	first := h.start(t)

	resp, _ := doJSON(t, http.MethodPost, first.URL+"/session/login", model.LoginRequest{Email: patron.Email, Password: patronPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := os.ReadFile(h.storeFile)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), patron.Email, "credentials must be sealed at rest")

	second := h.start(t)
	s, _ := currentSession(t, second)
	assert.Equal(t, model.StateAuthenticated, s.State)

	resp, _ = doJSON(t, http.MethodPost, second.URL+"/session/reconcile", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(0), h.backend.RefreshCalls.Load())

	resp, _ = doJSON(t, http.MethodGet, second.URL+"/api/artworks", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartupRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	h.seed(t, h.backend.IssueAccess(patron, -time.Minute), h.backend.IssueRefresh(patron, time.Hour), &patron)
	server := h.start(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/session/reconcile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s, _ := currentSession(t, server)
	assert.Equal(t, model.StateAuthenticated, s.State)
	assert.Equal(t, int32(1), h.backend.RefreshCalls.Load())

	_, env := doJSON(t, http.MethodGet, server.URL+"/session/token", nil)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"valid":true`)
}

func TestStartupRefreshFailureClearsCredentials(t *testing.T) {
	h := newHarness(t)
	h.seed(t, h.backend.IssueAccess(patron, -time.Minute), h.backend.IssueRefresh(patron, time.Hour), &patron)
	h.backend.FailRefresh(true)
	server := h.start(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/session/reconcile", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	s, notice := currentSession(t, server)
	assert.Equal(t, model.StateFailed, s.State)
	assert.Equal(t, "Session expired. Please login again.", notice)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/local/theme", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, server.URL+"/session/token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutDuringRefreshIsNotResurrected(t *testing.T) {
	h := newHarness(t)
	server := h.start(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/session/login", model.LoginRequest{Email: patron.Email, Password: patronPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	release := h.backend.HoldRefresh()
	defer release()

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/session/refresh", strings.NewReader(""))
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		defer r.Body.Close()
		done <- r.StatusCode
	}()

	require.Eventually(t, func() bool { return h.backend.RefreshCalls.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/session/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	release()

	select {
	case status := <-done:
		assert.Equal(t, http.StatusConflict, status)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh never returned")
	}

	s, _ := currentSession(t, server)
	assert.Equal(t, model.StateAnonymous, s.State)
	assert.False(t, s.IsAuthenticated)
}
