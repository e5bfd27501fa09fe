// Package authapitest runs an in-process marketplace auth backend that issues
// real HS256 tokens, for tests of the session agent.
package authapitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-art-session/internal/model"
)

var signingKey = []byte("authapitest-secret")

type account struct {
	profile  model.UserProfile
	password string
}

type Server struct {
	*httptest.Server

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	LoginCalls   atomic.Int32
	RefreshCalls atomic.Int32
	VerifyCalls  atomic.Int32
	LogoutCalls  atomic.Int32

	mu          sync.Mutex
	accounts    map[string]*account // by email
	failRefresh bool
	verified    *model.UserProfile
	refreshGate chan struct{}
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		accounts:   map[string]*account{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/refresh", s.refresh)
	mux.HandleFunc("GET /api/auth/verify", s.verify)
	mux.HandleFunc("POST /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/artworks", s.artworks)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the backend root including the /api prefix.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) AddUser(profile model.UserProfile, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(profile.Email)] = &account{profile: profile, password: password}
}

func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	s.failRefresh = fail
	s.mu.Unlock()
}

// SetVerifiedProfile makes /auth/verify answer with profile instead of the stored one.
func (s *Server) SetVerifiedProfile(profile *model.UserProfile) {
	s.mu.Lock()
	s.verified = profile
	s.mu.Unlock()
}

// HoldRefresh blocks refresh responses until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (s *Server) IssueAccess(profile model.UserProfile, ttl time.Duration) string {
	return s.sign(profile, ttl, "access")
}

func (s *Server) IssueRefresh(profile model.UserProfile, ttl time.Duration) string {
	return s.sign(profile, ttl, "refresh")
}

func (s *Server) sign(profile model.UserProfile, ttl time.Duration, kind string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":       profile.ID,
		"email":     profile.Email,
		"role":      string(profile.Role),
		"firstName": profile.FirstName,
		"lastName":  profile.LastName,
		"typ":       kind,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return token
}

func (s *Server) parse(raw string, kind string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims["typ"] != kind {
		return nil, errors.New("wrong token type")
	}
	return claims, nil
}

func (s *Server) profileFor(claims jwt.MapClaims) (model.UserProfile, bool) {
	email, _ := claims["email"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return model.UserProfile{}, false
	}
	return acct.profile, true
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.LoginCalls.Add(1)

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid email or password"})
		return
	}

	s.writeAuth(w, http.StatusOK, acct.profile, "Login successful")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid request body"})
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleCustomer
	}
	profile := model.UserProfile{
		ID:        uuid.NewString(),
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "User already exists"})
		return
	}
	s.accounts[strings.ToLower(req.Email)] = &account{profile: profile, password: req.Password}
	s.mu.Unlock()

	s.writeAuth(w, http.StatusCreated, profile, "Registration successful")
}

func (s *Server) writeAuth(w http.ResponseWriter, status int, profile model.UserProfile, message string) {
	writeJSON(w, status, model.AuthResponse{
		User: &profile,
		Tokens: model.TokenPair{
			AccessToken:  s.IssueAccess(profile, s.AccessTTL),
			RefreshToken: s.IssueRefresh(profile, s.RefreshTTL),
		},
		Success: true,
		Message: message,
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.RefreshCalls.Add(1)

	s.mu.Lock()
	gate := s.refreshGate
	fail := s.failRefresh
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req model.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	claims, err := s.parse(req.RefreshToken, "refresh")
	if fail || err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid refresh token"})
		return
	}
	profile, ok := s.profileFor(claims)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unknown user"})
		return
	}

	writeJSON(w, http.StatusOK, model.BackendEnvelope[model.RefreshResult]{
		Success: true,
		Data: model.RefreshResult{
			AccessToken:  s.IssueAccess(profile, s.AccessTTL),
			RefreshToken: s.IssueRefresh(profile, s.RefreshTTL),
		},
	})
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	s.VerifyCalls.Add(1)

	claims, err := s.bearer(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid token"})
		return
	}

	s.mu.Lock()
	override := s.verified
	s.mu.Unlock()
	if override != nil {
		writeJSON(w, http.StatusOK, model.BackendEnvelope[model.UserProfile]{Success: true, Data: *override})
		return
	}

	profile, ok := s.profileFor(claims)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, model.BackendEnvelope[model.UserProfile]{Success: true, Data: profile})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	s.LogoutCalls.Add(1)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// artworks stands in for any authorized marketplace endpoint.
func (s *Server) artworks(w http.ResponseWriter, r *http.Request) {
	claims, err := s.bearer(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    []map[string]any{{"id": "art-1", "owner": claims["sub"]}},
	})
}

func (s *Server) bearer(r *http.Request) (jwt.MapClaims, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, errors.New("missing bearer")
	}
	return s.parse(raw, "access")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
