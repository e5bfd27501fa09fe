//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-art-session/internal/app"
	"go-art-session/internal/authapi/authapitest"
	"go-art-session/internal/config"
	"go-art-session/internal/credential"
	"go-art-session/internal/model"
)

const storeSecret = "integration-store-secret"

var patron = model.UserProfile{
	ID:        "patron-9",
	Email:     "patron@example.com",
	FirstName: "Peggy",
	LastName:  "Guggenheim",
	Role:      model.RoleCustomer,
	CreatedAt: "2022-06-01T12:00:00Z",
}

const patronPassword = "venice-1949"

type harness struct {
	backend   *authapitest.Server
	storeFile string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := authapitest.NewServer(t)
	backend.AddUser(patron, patronPassword)
	return &harness{backend: backend, storeFile: filepath.Join(t.TempDir(), "credentials.json")}
}

func (h *harness) config() *config.Config {
	return &config.Config{
		ServerPort:        "0",
		RequestTimeout:    10 * time.Second,
		BackendURL:        h.backend.BaseURL(),
		BackendTimeout:    5 * time.Second,
		StoreDriver:       config.StoreDriverFile,
		StoreFile:         h.storeFile,
		StoreSecret:       storeSecret,
		StoreNamespace:    "integration",
		TokenExpiryBuffer: 5 * time.Minute,
		RefreshInterval:   time.Minute,
		RefreshWindow:     5 * time.Minute,
		VerifyMaxRetries:  1,
		EventsHeartbeat:   time.Second,
		EventsMaxDuration: time.Minute,
		ProxyMaxBodyBytes: 1 << 20,
		CORSOrigins:       []string{"*"},
		RateLimitRPM:      0,
		AuthRateLimitRPM:  1000,
	}
}

// start boots a fresh agent over the harness's credential file, as after a restart.
func (h *harness) start(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := h.config()
	require.NoError(t, cfg.Validate())
	application, err := app.New(cfg, nil)
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		application.Close()
	})
	return server
}

// seed writes credentials the way a previous agent run would have left them.
func (h *harness) seed(t *testing.T, access string, refresh string, profile *model.UserProfile) {
	t.Helper()

	file, err := credential.NewFileBackend(h.storeFile)
	require.NoError(t, err)
	sealed, err := credential.NewSealedBackend(file, storeSecret)
	require.NoError(t, err)
	store := credential.NewStore(sealed, nil)

	ctx := t.Context()
	require.NoError(t, store.SetTokens(ctx, access, refresh))
	if profile != nil {
		require.NoError(t, store.SetUserProfile(ctx, *profile))
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Notice  string          `json:"notice"`
}

func doJSON(t *testing.T, method string, url string, body any) (*http.Response, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = raw
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func currentSession(t *testing.T, server *httptest.Server) (model.Session, string) {
	t.Helper()

	_, env := doJSON(t, http.MethodGet, server.URL+"/session", nil)
	var s model.Session
	require.NoError(t, json.Unmarshal(env.Data, &s))
	return s, env.Notice
}
