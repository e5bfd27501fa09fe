package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type localStore interface {
	GetLocal(ctx context.Context, key string) (string, error)
	SetLocal(ctx context.Context, key string, value string) error
}

// LocalHandler serves the UI-local keys that share storage with the session.
type LocalHandler struct {
	store localStore
}

func NewLocalHandler(store localStore) *LocalHandler {
	return &LocalHandler{store: store}
}

type localValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *LocalHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, err := h.store.GetLocal(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, localValue{Key: key, Value: value}, "")
}

func (h *LocalHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var payload localValue
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.SetLocal(r.Context(), key, payload.Value); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, localValue{Key: key, Value: payload.Value}, "")
}
