package handler

import (
	"context"
	"net/http"
	"strings"

	"go-art-session/internal/credential"
	"go-art-session/internal/model"
	"go-art-session/internal/session"
	"go-art-session/pkg/apierror"
)

type sessionService interface {
	Session() model.Session
	TakeNotice() string
	Inspector() credential.Inspector
	Login(ctx context.Context, req model.LoginRequest) (session.LoginResult, error)
	Register(ctx context.Context, req model.RegisterRequest) (session.LoginResult, error)
	Logout(ctx context.Context)
	Refresh(ctx context.Context) (string, error)
	Reconcile(ctx context.Context) error
	EnsureValidToken(ctx context.Context) (string, error)
}

type SessionHandler struct {
	service sessionService
}

func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Get returns the current session together with any pending notice.
func (h *SessionHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.service.Session(), h.service.TakeNotice())
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}

	result, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, "")
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.Email = strings.TrimSpace(payload.Email)
	if payload.Email == "" || payload.Password == "" {
		writeError(w, apierror.New("BAD_REQUEST", "email and password are required", "", http.StatusBadRequest))
		return
	}
	if payload.Role != "" {
		role, ok := model.ParseRole(string(payload.Role))
		if !ok {
			writeError(w, apierror.New("BAD_REQUEST", "unknown role", string(payload.Role), http.StatusBadRequest))
			return
		}
		payload.Role = role
	}

	result, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, "")
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true}, "")
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.service.Inspector().Info(token), "")
}

func (h *SessionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reconcile(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, h.service.Session(), h.service.TakeNotice())
}

type tokenResponse struct {
	AccessToken string          `json:"accessToken"`
	Info        model.TokenInfo `json:"info"`
}

// Token hands the bearer to local callers; the route is gated on authentication.
func (h *SessionHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.EnsureValidToken(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeSuccess(w, http.StatusOK, tokenResponse{AccessToken: token, Info: h.service.Inspector().Info(token)}, "")
}
