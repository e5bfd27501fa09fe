package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-art-session/internal/logger"
	"go-art-session/internal/model"
)

type staticSession model.Session

func (s staticSession) Session() model.Session {
	return model.Session(s)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	return body.Error
}

func TestRequireRoles(t *testing.T) {
	admin := model.AuthenticatedSession(model.UserProfile{ID: "a", Role: model.RoleAdmin}, "tok")
	customer := model.AuthenticatedSession(model.UserProfile{ID: "c", Role: model.RoleCustomer}, "tok")

	tests := []struct {
		name    string
		session model.Session
		roles   []model.Role
		status  int
		code    string
	}{
		{name: "anonymous", session: model.AnonymousSession(), status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "loading", session: model.Session{State: model.StateLoading, Loading: true}, status: http.StatusServiceUnavailable, code: "SESSION_LOADING"},
		{name: "wrong role", session: customer, roles: []model.Role{model.RoleAdmin}, status: http.StatusForbidden, code: "FORBIDDEN"},
		{name: "allowed", session: admin, roles: []model.Role{model.RoleAdmin}, status: http.StatusOK},
		{name: "any authenticated", session: customer, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(staticSession(tt.session))
			rec := httptest.NewRecorder()
			mw.RequireRoles(tt.roles...)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/token", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, rec).Code)
			}
		})
	}
}

func TestLoggingPropagatesRequestID(t *testing.T) {
	var seen string
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), seen)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestStreamingTimeoutCancelsIdleStream(t *testing.T) {
	done := make(chan error, 1)
	handler := StreamingTimeout(time.Minute, 50*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(": hello\n\n"))
		<-r.Context().Done()
		done <- r.Context().Err()
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	go func() {
		// the write deadline may cut the response short; only the handler side matters here
		if resp, err := http.Get(srv.URL); err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("idle stream was not cancelled")
	}
}

func TestTimeoutRendersJSONEnvelope(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/login", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "REQUEST_TIMEOUT", decodeError(t, rec).Code)
}

func TestTimeoutKeepsHandlerContentType(t *testing.T) {
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("a,b\n"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
}
